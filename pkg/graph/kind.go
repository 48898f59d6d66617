package graph

import "slices"

// Kind is the closed set of rule families the IDE model distinguishes.
// Rules outside the handled set are KindOpaque: they stay in the graph
// with their edges but never become IDE source sets.
type Kind int

const (
	KindOpaque Kind = iota
	KindJava
	KindKotlin
	KindAndroid
	KindProto
	KindCC
)

var kindNames = [...]string{
	KindOpaque:  "opaque",
	KindJava:    "java",
	KindKotlin:  "kotlin",
	KindAndroid: "android",
	KindProto:   "proto",
	KindCC:      "cc",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsCC reports whether the kind is a C/C++ rule family.
func (k Kind) IsCC() bool { return k == KindCC }

// IsJVM reports whether sources of this kind compile to class jars.
func (k Kind) IsJVM() bool {
	switch k {
	case KindJava, KindKotlin, KindAndroid:
		return true
	}
	return false
}

// SupportsRendering reports whether the IDE can render previews for
// targets of this kind (layouts and composables need a render jar).
func (k Kind) SupportsRendering() bool {
	switch k {
	case KindAndroid, KindKotlin:
		return true
	}
	return false
}

// ruleClasses maps each language to the rule classes it covers.
var ruleClasses = map[Kind][]string{
	KindJava: {
		"java_library", "java_binary", "java_test", "java_import",
		"java_plugin",
	},
	KindKotlin: {
		"kt_jvm_library", "kt_jvm_binary", "kt_jvm_test", "kt_jvm_import",
		"kt_android_library", "kt_library", "kt_test",
	},
	KindAndroid: {
		"android_library", "android_binary", "android_local_test",
		"android_instrumentation_test", "aar_import",
	},
	KindProto: {
		"proto_library", "java_proto_library", "java_lite_proto_library",
		"java_grpc_library",
	},
	KindCC: {
		"cc_library", "cc_binary", "cc_test", "cc_import",
	},
}

// KindForLanguage returns the Kind for a configured language name.
func KindForLanguage(lang string) (Kind, bool) {
	for k, name := range kindNames {
		if name == lang && Kind(k) != KindOpaque {
			return Kind(k), true
		}
	}
	return KindOpaque, false
}

// HandledKinds builds the rule-class table for the given languages.
// Unknown language names are ignored.
func HandledKinds(languages []string) map[string]Kind {
	out := make(map[string]Kind)
	for _, lang := range languages {
		k, ok := KindForLanguage(lang)
		if !ok {
			continue
		}
		for _, rc := range ruleClasses[k] {
			out[rc] = k
		}
	}
	return out
}

// RuleClasses returns the sorted rule classes for a kind.
func RuleClasses(k Kind) []string {
	out := slices.Clone(ruleClasses[k])
	slices.Sort(out)
	return out
}
