package structtag

type Entry struct {
	Target string `json:"target"`
	Rule   string `json:"target"` // want `struct field Rule repeats json tag "target" also at structtag.go:4`
}

type Result struct {
	Updated int `json:"updated" yaml` // want `struct field tag .* not compatible with reflect.StructTag.Get`
}

type Info struct {
	Digest string `json:"digest" yaml:"digest"`
}
