package validation

import "testing"

func TestValidRedirectURI(t *testing.T) {
	ok := []string{
		"https://app.example/cb",
		"https://app.example:8443/oauth/cb?x=1",
		"http://localhost:3000/cb",
		"http://127.0.0.1/cb",
	}
	bad := []string{
		"",
		"/relative/cb",
		"app.example/cb",
		"https://app.example/cb#frag",
		"http://app.example/cb",
		"javascript:alert(1)",
		"https://user:pw@app.example/cb",
	}
	for _, v := range ok {
		if !ValidRedirectURI(v) {
			t.Errorf("expected valid: %q", v)
		}
	}
	for _, v := range bad {
		if ValidRedirectURI(v) {
			t.Errorf("expected invalid: %q", v)
		}
	}
}

func TestValidClientID(t *testing.T) {
	for _, v := range []string{"c1", "ward-app", "ward_app.v2"} {
		if !ValidClientID(v) {
			t.Errorf("expected valid: %q", v)
		}
	}
	for _, v := range []string{"", "-c1", "bad id", "c1;drop"} {
		if ValidClientID(v) {
			t.Errorf("expected invalid: %q", v)
		}
	}
}
