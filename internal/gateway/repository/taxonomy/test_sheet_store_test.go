package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"promptbuilder/internal/gateway/settings"
	model "promptbuilder/internal/taxonomy"
	"promptbuilder/internal/tester"
)

func newResolver(t *testing.T, rawURL, key string) *settings.Service {
	t.Helper()
	s, err := settings.New("", settings.Endpoint{URL: rawURL, APIKey: key}, nil)
	tester.NoErr(t, err)
	return s
}

func TestSheetLoadStripsJSONP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "secret" {
			fmt.Fprint(w, `{"error":"Invalid API key"}`)
			return
		}
		fmt.Fprint(w, `cb({"items":[
			{"id":"b","category":"dress","label":"Blue","prompt_text":"a blue dress","tags":"cool|calm","order":1},
			{"id":"r","category":"dress","label":"Red","prompt_text":"a red dress","tags":"","order":"0"},
			{"id":"x","category":"bags","label":"Tote","prompt_text":"a tote","tags":null,"order":""}
		]});`)
	}))
	defer srv.Close()

	store := NewSheetStore(newResolver(t, srv.URL, "secret"), srv.Client(), nil)
	data, err := store.Load(context.Background())
	tester.NoErr(t, err)

	dress := data.Items("dress")
	tester.Eq(t, len(dress), 2)
	tester.Eq(t, dress[0].ID, "r")
	tester.Eq(t, dress[1].Tags, []string{"cool", "calm"})
	tester.Eq(t, len(dress[0].Tags), 0)

	bags := data.Items("bags")
	tester.Eq(t, len(bags), 1)
	tester.True(t, bags[0].Order == nil)
}

func TestSheetLoadRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":"Invalid API key"}`)
	}))
	defer srv.Close()

	_, err := NewSheetStore(newResolver(t, srv.URL, "wrong"), srv.Client(), nil).Load(context.Background())
	var remote *RemoteError
	tester.True(t, errors.As(err, &remote))
	tester.Eq(t, remote.Message, "Invalid API key")
	tester.Eq(t, Describe(err), "Invalid API key")
}

func TestSheetLoadMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>sign in</html>`)
	}))
	defer srv.Close()

	_, err := NewSheetStore(newResolver(t, srv.URL, "k"), srv.Client(), nil).Load(context.Background())
	tester.ErrIs(t, err, ErrMalformedResponse)
}

func TestSheetUnconfigured(t *testing.T) {
	store := NewSheetStore(newResolver(t, "", ""), nil, nil)
	_, err := store.Load(context.Background())
	tester.ErrIs(t, err, settings.ErrUnconfigured)
	tester.ErrIs(t, store.Save(context.Background(), nil), settings.ErrUnconfigured)
}

func TestSheetSaveForm(t *testing.T) {
	var got url.Values
	var key, method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		key = r.URL.Query().Get("key")
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		fmt.Fprint(w, `{"success":true}`)
	}))
	defer srv.Close()

	store := NewSheetStore(newResolver(t, srv.URL, "k1"), srv.Client(), nil)
	items := []model.Item{{ID: "a", Category: "dress", Label: "A", PromptText: "p", Tags: []string{"a", "b"}, Order: model.OrderOf(0)}}
	tester.NoErr(t, store.Save(context.Background(), items))

	tester.Eq(t, method, http.MethodPost)
	tester.Eq(t, key, "k1")
	tester.Eq(t, got.Get("action"), "saveTaxonomy")
	tester.Contains(t, got.Get("items"), `"tags":"a|b"`)
	decoded, err := model.DecodeItems([]byte(got.Get("items")))
	tester.NoErr(t, err)
	tester.Eq(t, decoded[0].Tags, []string{"a", "b"})
}

func TestSheetSaveHTTPError(t *testing.T) {
	cases := []struct {
		name string
		code int
		body string
		want string
	}{
		{"error field", http.StatusForbidden, `{"error":"Sheet is locked"}`, "Sheet is locked"},
		{"no body", http.StatusBadGateway, ``, "HTTP error! status: 502"},
		{"ok with error", http.StatusOK, `{"error":"Quota exceeded"}`, "Quota exceeded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			err := NewSheetStore(newResolver(t, srv.URL, "k"), srv.Client(), nil).Save(context.Background(), nil)
			var remote *RemoteError
			tester.True(t, errors.As(err, &remote))
			tester.Eq(t, remote.Message, tc.want)
			tester.Eq(t, remote.Status, tc.code)
		})
	}
}

func TestSheetUnreachableHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	target := srv.URL + "/exec"
	srv.Close()

	_, err := NewSheetStore(newResolver(t, target, "secret-key"), nil, nil).Load(context.Background())
	var down *UnreachableError
	tester.True(t, errors.As(err, &down))
	tester.Eq(t, down.URL, target)
	tester.False(t, strings.Contains(err.Error(), "secret-key"))
	tester.False(t, strings.Contains(Describe(err), "secret-key"))
	tester.Contains(t, Describe(err), "Failed to reach the taxonomy store")
	tester.False(t, errors.Is(err, ErrMalformedResponse))
}

func TestDescribeTransport(t *testing.T) {
	tester.Contains(t, Describe(errors.New("dial tcp: refused")), "Failed to reach")
	tester.Eq(t, Describe(nil), "")
}
