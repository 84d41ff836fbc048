package pipeline

import (
	"errors"
	"testing"
)

func TestParseSelector(t *testing.T) {
	m := newMapping(t)
	cases := []struct {
		raw  string
		want Selector
	}{
		{"detect", AutoDetectSelector()},
		{"all", AllSupportedSelector()},
		{"", ExplicitSelector("eng")},
		{"  ", ExplicitSelector("eng")},
		{"deu", ExplicitSelector("deu")},
		{"chi_sim", ExplicitSelector("chi_sim")},
		{"eng+fra", ExplicitSelector("eng+fra")},
	}
	for _, c := range cases {
		got, err := ParseSelector(c.raw, DefaultTokens, m)
		if err != nil {
			t.Errorf("%q: %v", c.raw, err)
			continue
		}
		if got != c.want {
			t.Errorf("%q: want %v, got %v", c.raw, c.want, got)
		}
	}
}

func TestParseSelectorRejectsUnsupported(t *testing.T) {
	m := newMapping(t)
	for _, raw := range []string{"jpn", "eng+jpn", "eng+", "DETECT"} {
		if _, err := ParseSelector(raw, DefaultTokens, m); !errors.Is(err, ErrUnsupportedLanguage) {
			t.Errorf("%q: want ErrUnsupportedLanguage, got %v", raw, err)
		}
	}
}

func TestParseSelectorCustomTokens(t *testing.T) {
	m := newMapping(t)
	tokens := Tokens{Detect: "auto", All: "*"}
	if sel, _ := ParseSelector("auto", tokens, m); sel.Mode != AutoDetect {
		t.Errorf("want auto detect, got %v", sel)
	}
	if sel, _ := ParseSelector("*", tokens, m); sel.Mode != AllSupported {
		t.Errorf("want all supported, got %v", sel)
	}
	if _, err := ParseSelector("detect", tokens, m); err == nil {
		t.Error("default token must not be accepted when replaced")
	}
}

func TestSelectorString(t *testing.T) {
	if s := ExplicitSelector("eng+deu").String(); s != "eng+deu" {
		t.Errorf("unexpected %s", s)
	}
	if s := AutoDetectSelector().String(); s != "detect" {
		t.Errorf("unexpected %s", s)
	}
}
