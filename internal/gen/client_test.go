package gen

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   ErrorKind
	}{
		{401, "unauthorized", KindCredential},
		{403, "forbidden", KindCredential},
		{400, "API key not valid", KindCredential},
		{402, "payment required", KindBilling},
		{400, "billing account required", KindBilling},
		{429, "quota exceeded for project", KindQuota},
		{429, "rate limited", KindOverloaded},
		{503, "service unavailable", KindOverloaded},
		{500, "internal", KindNetwork},
		{418, "teapot", KindUnknown},
	}
	for _, tc := range cases {
		got := classifyStatus(tc.status, tc.body)
		if got.Kind != tc.want {
			t.Fatalf("status=%d body=%q: got kind %d want %d", tc.status, tc.body, got.Kind, tc.want)
		}
	}
}

func TestGenerateImage_DecodesPayload(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":"` + base64.StdEncoding.EncodeToString(img) + `"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key")
	got, err := c.GenerateImage(context.Background(), "a red fox")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(got) != string(img) {
		t.Fatalf("image bytes mismatch")
	}
}

func TestGenerateImage_ClassifiedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(429)
		w.Write([]byte("quota exceeded"))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key")
	_, err := c.GenerateImage(context.Background(), "x")
	if Classify(err) != KindQuota {
		t.Fatalf("want KindQuota, got %v (%v)", Classify(err), err)
	}
}

func TestSearchProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"summary":"Two options found.","products":[{"name":"Mug"},{"name":"Cup","image":"` +
			base64.StdEncoding.EncodeToString([]byte{1, 2}) + `"}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key")
	summary, products, err := c.SearchProducts(context.Background(), "mugs")
	if err != nil {
		t.Fatalf("SearchProducts: %v", err)
	}
	if summary != "Two options found." || len(products) != 2 {
		t.Fatalf("unexpected result: %q %d", summary, len(products))
	}
	if products[1].Name != "Cup" || len(products[1].Image) != 2 {
		t.Fatalf("product decode wrong: %+v", products[1])
	}
}

func TestMissingKeyIsCredentialError(t *testing.T) {
	c := NewHTTPClient("http://example.test", "")
	_, err := c.GenerateImage(context.Background(), "x")
	if Classify(err) != KindCredential {
		t.Fatalf("want KindCredential, got %v", Classify(err))
	}
}
