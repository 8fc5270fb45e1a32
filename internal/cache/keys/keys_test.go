package keys

import (
	"net/url"
	"regexp"
	"testing"
	"unicode"
)

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	p := url.Values{"timeframe": {"month"}}
	k1 := ForRequest("/home", p)
	k2 := ForRequest("/home", p)
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestOrderIndependence_ParamOrderDoesNotMatter(t *testing.T) {
	a := url.Values{}
	a.Add("a", "1")
	a.Add("b", "2")
	b := url.Values{}
	b.Add("b", "2")
	b.Add("a", "1")
	k1 := ForRequest("/home", a)
	k2 := ForRequest("/home", b)
	if k1 != k2 {
		t.Fatalf("param order changed the key:\n k1=%s\n k2=%s", k1, k2)
	}

	// repeated values within one name are order-independent too
	c := url.Values{"w": {"7", "30"}}
	d := url.Values{"w": {"30", "7"}}
	if ForRequest("/home", c) != ForRequest("/home", d) {
		t.Fatalf("value order within a name changed the key")
	}
}

func TestDifference_DifferentParamsDifferentKeys(t *testing.T) {
	k1 := ForRequest("/home", url.Values{"timeframe": {"week"}})
	k2 := ForRequest("/home", url.Values{"timeframe": {"month"}})
	if k1 == k2 {
		t.Fatalf("different params must produce different keys")
	}

	k3 := ForRequest("/home", url.Values{"a": {"1"}, "b": {"2"}})
	k4 := ForRequest("/home", url.Values{"a": {"1"}})
	if k3 == k4 {
		t.Fatalf("different param sets must produce different keys")
	}
}

func TestDifference_StructuralCharactersDoNotCollide(t *testing.T) {
	// a value containing '&' or '=' must not be mistaken for extra pairs
	k1 := ForRequest("/home", url.Values{"a": {"1&b=2"}})
	k2 := ForRequest("/home", url.Values{"a": {"1"}, "b": {"2"}})
	if k1 == k2 {
		t.Fatalf("value with pair separators collided with a two-param set:\n k1=%s\n k2=%s", k1, k2)
	}

	k3 := ForRequest("/home", url.Values{"a=b": {"c"}})
	k4 := ForRequest("/home", url.Values{"a": {"b=c"}})
	if k3 == k4 {
		t.Fatalf("'=' in a name collided with '=' in a value:\n k3=%s\n k4=%s", k3, k4)
	}
}

func TestDifference_PathIsPartOfTheKey(t *testing.T) {
	p := url.Values{"timeframe": {"month"}}
	if ForRequest("/home", p) == ForRequest("/stats", p) {
		t.Fatalf("different paths must produce different keys")
	}
}

func TestKeyFormat_ASCIIOnlyWithHashSuffix(t *testing.T) {
	p := url.Values{"timeframe": {"Göteborg 雪"}}
	k := ForRequest("/home", p)

	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}

	if m := regexp.MustCompile(`:h=([0-9a-f]{16})$`).FindStringSubmatch(k); len(m) != 2 {
		t.Fatalf("missing or invalid :h=<hex64> suffix in key: %s", k)
	}
}

func TestEmptyParams_StillKeyed(t *testing.T) {
	k := ForRequest("/home", url.Values{})
	if k == "" {
		t.Fatalf("empty params must still produce a key")
	}
	if k == ForRequest("/home", url.Values{"timeframe": {"month"}}) {
		t.Fatalf("empty and non-empty params must differ")
	}
}
