package workflow

import "testing"

func TestParseToken(t *testing.T) {
	cases := []struct {
		raw     string
		want    Token
		wantErr bool
	}{
		{"fus/update:1", Token{Name: "fus/update", Major: 1}, false},
		{"fus/firmware:1", Token{Name: "fus/firmware", Major: 1}, false},
		{"fus/update:2", Token{Name: "fus/update", Major: 2}, false},
		{"no-colon", Token{}, true},
		{"trailing:", Token{}, true},
		{"fus/update:abc", Token{}, true},
	}
	for _, c := range cases {
		got, err := ParseToken(c.raw)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseToken(%q): expected error, got none", c.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseToken(%q): unexpected error: %v", c.raw, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseToken(%q) = %+v, want %+v", c.raw, got, c.want)
		}
	}
}

func TestSingleFile(t *testing.T) {
	one := &StaticInput{In: Input{FileEntities: []FileEntity{{TargetFilename: "a.bin"}}}}
	if _, err := SingleFile(one); err != nil {
		t.Errorf("expected no error for exactly one file entity, got %v", err)
	}

	none := &StaticInput{}
	if _, err := SingleFile(none); err == nil {
		t.Error("expected error for zero file entities, got none")
	}

	two := &StaticInput{In: Input{FileEntities: []FileEntity{{TargetFilename: "a"}, {TargetFilename: "b"}}}}
	if _, err := SingleFile(two); err == nil {
		t.Error("expected error for two file entities, got none")
	}
}

func TestStaticInputImplementsProvider(t *testing.T) {
	var _ Provider = &StaticInput{}
}
