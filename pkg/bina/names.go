package bina

import "strings"

// Dependency entries carry the split table of a root archive.
const (
	DependencyExt  = "pac.d"
	DependencyType = "ResPacDepend"
)

// RawType is used for extensions the engine has no registered type for.
const RawType = "ResRawData"

var extTypes = map[string]string{
	"dds":           "ResTexture",
	"material":      "ResMirageMaterial",
	"model":         "ResModel",
	"terrain-model": "ResMirageTerrainModel",
	"skl.hkx":       "ResSkeleton",
	"anm.hkx":       "ResAnimSkeleton",
	"uv-anim":       "ResAnimTexSrt",
	"mat-anim":      "ResAnimMaterial",
	"light":         "ResMirageLight",
	"lua":           "ResLuaData",
	"xml":           "ResXml",
	"txt":           "ResText",
	"bin":           "ResBinary",
	"pac.d":         DependencyType,
}

// TypeForExt returns the resource type written for an extension.
func TypeForExt(ext string) string {
	if t, ok := extTypes[strings.ToLower(ext)]; ok {
		return t
	}
	return RawType
}

// SplitName separates an entry name at the first dot of its last path
// element: "sonic.skl.hkx" is ("sonic", "skl.hkx").
func SplitName(name string) (base, ext string) {
	dir := ""
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		dir, name = name[:i+1], name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return dir + name[:i], name[i+1:]
	}
	return dir + name, ""
}

// JoinName is the inverse of SplitName.
func JoinName(base, ext string) string {
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// TypeKey is the generation 2 type node name "<ext>:<TypeName>".
func TypeKey(ext, typeName string) string {
	return ext + ":" + typeName
}

// ParseTypeKey splits a type node name.
func ParseTypeKey(key string) (ext, typeName string, ok bool) {
	i := strings.IndexByte(key, ':')
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
