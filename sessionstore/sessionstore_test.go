package sessionstore

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/gorilla/sessions"
	"github.com/hashicorp/go-hclog"
	"github.com/jjeffery/ddbsessions/internal/testhelper"
	"github.com/jjeffery/ddbsessions/storage"
	ddbstorage "github.com/jjeffery/ddbsessions/storage/dynamodb"
	"github.com/jjeffery/ddbsessions/storage/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"
)

const tableName = "sessions"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newDynamoStore returns a store backed by the fake DynamoDB service.
func newDynamoStore(options Options) (*Store, *testhelper.DynamoDB) {
	fake := testhelper.NewDynamoDB()
	db := ddbstorage.New(fake, tableName)
	db.Table.InitialDelay = time.Millisecond
	db.Table.MaxDelay = time.Millisecond
	return New(db, options), fake
}

func newRequest(cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest("GET", "http://localhost:8080/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func responseCookie(t *testing.T, rsp *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rsp.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("no %s cookie in %v", name, rsp.Header())
	return nil
}

// storedValues returns the decoded session_data attribute of a stored item.
func storedValues(t *testing.T, fake *testhelper.DynamoDB, key string) map[string]interface{} {
	t.Helper()
	item := fake.Item(tableName, key)
	if item == nil {
		t.Fatalf("no item with key %s", key)
	}
	var values map[string]interface{}
	if err := json.Unmarshal([]byte(aws.StringValue(item["session_data"].S)), &values); err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
	return values
}

// putItem writes session data directly to the fake table, bypassing the store.
func putItem(t *testing.T, fake *testhelper.DynamoDB, key, data string) {
	t.Helper()
	_, err := fake.PutItemWithContext(context.Background(), &dynamodb.PutItemInput{
		TableName: aws.String(tableName),
		Item: map[string]*dynamodb.AttributeValue{
			"key":          {S: aws.String(key)},
			"session_data": {S: aws.String(data)},
		},
	})
	wantNoError(t, err)
}

func TestCreateCookieInHandler(t *testing.T) {
	store, fake := newDynamoStore(Options{})

	req := newRequest()
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Values["a"] = 1
	session.Values["b"] = 2
	rsp := httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))

	cookie := responseCookie(t, rsp, DefaultCookieName)
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(cookie.Value) {
		t.Fatalf("got=%q, want 32 hex chars", cookie.Value)
	}
	if got, want := cookie.Value, session.ID; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if !cookie.HttpOnly {
		t.Error("got=false, want=true")
	}
	if got, want := cookie.Path, "/"; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}

	key := "AIOHTTP_SESSION_" + cookie.Value
	want := map[string]interface{}{"a": 1.0, "b": 2.0}
	if got := storedValues(t, fake, key); !reflect.DeepEqual(got, want) {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	// without a max age or idle timeout the item does not expire
	if _, ok := fake.Item(tableName, key)["expires_at"]; ok {
		t.Error("got expires_at, want none")
	}
}

func TestIdleTimeout(t *testing.T) {
	now := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer restoreStubs()

	store, fake := newDynamoStore(Options{IdleTimeout: time.Hour})
	req := newRequest()
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Values["a"] = 1
	rsp := httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))

	// the cookie still lasts for the browser session
	cookie := responseCookie(t, rsp, DefaultCookieName)
	if got, want := cookie.MaxAge, 0; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	expiresAt := fake.Item(tableName, "AIOHTTP_SESSION_"+session.ID)["expires_at"]
	if expiresAt == nil {
		t.Fatal("got no expires_at, want expires_at")
	}
	if got, want := aws.StringValue(expiresAt.N), "4070912400"; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}

	// an explicit max age takes precedence
	session.Options.MaxAge = 8
	rsp = httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))
	expiresAt = fake.Item(tableName, "AIOHTTP_SESSION_"+session.ID)["expires_at"]
	if got, want := aws.StringValue(expiresAt.N), "4070908808"; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
}

func TestSaveThenLoad(t *testing.T) {
	store, _ := newDynamoStore(Options{})
	payloads := []map[string]interface{}{
		{},
		{"a": 1.0, "b": 2.0},
		{"user": "alice", "admin": false, "roles": []interface{}{"x", "y"}},
		{"nested": map[string]interface{}{"n": nil, "s": "é"}},
	}

	for tn, payload := range payloads {
		req := newRequest()
		session, err := store.New(req, DefaultCookieName)
		wantNoError(t, err)
		for k, v := range payload {
			session.Values[k] = v
		}
		rsp := httptest.NewRecorder()
		wantNoError(t, store.Save(req, rsp, session))

		req = newRequest(responseCookie(t, rsp, DefaultCookieName))
		loaded, err := store.New(req, DefaultCookieName)
		wantNoError(t, err)
		if loaded.IsNew {
			t.Errorf("%d: got=new, want=existing", tn)
		}
		if got, want := loaded.ID, session.ID; got != want {
			t.Errorf("%d: got=%v, want=%v", tn, got, want)
		}
		if got, want := stringValues(loaded.Values), payload; !reflect.DeepEqual(got, want) {
			t.Errorf("%d: got=%v, want=%v", tn, got, want)
		}
	}
}

func TestLoadWithoutCookie(t *testing.T) {
	store, fake := newDynamoStore(Options{})
	session, err := store.New(newRequest(), DefaultCookieName)
	wantNoError(t, err)
	if !session.IsNew {
		t.Error("got=false, want=true")
	}
	if session.ID != "" {
		t.Errorf("got=%q, want empty", session.ID)
	}
	if len(session.Values) != 0 {
		t.Errorf("got=%v, want empty", session.Values)
	}
	for _, op := range []string{"ListTables", "CreateTable", "GetItem"} {
		if got := fake.Calls(op); got != 0 {
			t.Errorf("%s: got=%v, want=0", op, got)
		}
	}
}

func TestLoadUnknownIdentity(t *testing.T) {
	store, fake := newDynamoStore(Options{})
	req := newRequest(&http.Cookie{Name: DefaultCookieName, Value: "invalid_key"})
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	if !session.IsNew {
		t.Error("got=false, want=true")
	}
	if session.ID != "" {
		t.Errorf("got=%q, want empty", session.ID)
	}
	if got, want := fake.Calls("GetItem"), 1; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}

	// saving allocates a fresh identity rather than adopting the cookie value
	rsp := httptest.NewRecorder()
	session.Values["k"] = "v"
	wantNoError(t, store.Save(req, rsp, session))
	if got := responseCookie(t, rsp, DefaultCookieName).Value; got == "invalid_key" {
		t.Errorf("got=%v, want new identity", got)
	}
}

func TestLoadBadSession(t *testing.T) {
	tests := []string{
		`{"a":`,
		`not json`,
		`[1,2,3]`,
		`"just a string"`,
	}
	for tn, data := range tests {
		var logbuf bytes.Buffer
		metrics := NewMetrics(nil)
		store, fake := newDynamoStore(Options{
			Logger:  hclog.New(&hclog.LoggerOptions{Output: &logbuf, Level: hclog.Warn}),
			Metrics: metrics,
		})
		wantNoError(t, store.provision(context.Background()))
		putItem(t, fake, "AIOHTTP_SESSION_0123", data)

		req := newRequest(&http.Cookie{Name: DefaultCookieName, Value: "0123"})
		session, err := store.New(req, DefaultCookieName)
		if err != nil {
			t.Errorf("%d: got=%v, want=nil", tn, err)
			continue
		}
		if session.IsNew {
			t.Errorf("%d: got=new, want=existing", tn)
		}
		if got, want := session.ID, "0123"; got != want {
			t.Errorf("%d: got=%v, want=%v", tn, got, want)
		}
		if len(session.Values) != 0 {
			t.Errorf("%d: got=%v, want empty", tn, session.Values)
		}
		if !strings.Contains(logbuf.String(), "discarding session data") {
			t.Errorf("%d: got=%q, want warning", tn, logbuf.String())
		}
		if got, want := testutil.ToFloat64(metrics.loads.WithLabelValues(loadCorrupt)), 1.0; got != want {
			t.Errorf("%d: got=%v, want=%v", tn, got, want)
		}
	}
}

func TestLoadEmptyObject(t *testing.T) {
	store, fake := newDynamoStore(Options{})
	wantNoError(t, store.provision(context.Background()))
	putItem(t, fake, "AIOHTTP_SESSION_abc", `{}`)

	req := newRequest(&http.Cookie{Name: DefaultCookieName, Value: "abc"})
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	if session.IsNew {
		t.Error("got=new, want=existing")
	}
	if len(session.Values) != 0 {
		t.Errorf("got=%v, want empty", session.Values)
	}
}

func TestChangeSession(t *testing.T) {
	store, fake := newDynamoStore(Options{})
	wantNoError(t, store.provision(context.Background()))
	putItem(t, fake, "AIOHTTP_SESSION_abc", `{"a":1,"b":2}`)

	req := newRequest(&http.Cookie{Name: DefaultCookieName, Value: "abc"})
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Values["c"] = 3
	rsp := httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))

	cookie := responseCookie(t, rsp, DefaultCookieName)
	if got, want := cookie.Value, "abc"; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	if !cookie.HttpOnly || cookie.Path != "/" {
		t.Errorf("got=%v, want HttpOnly with path /", cookie)
	}
	want := map[string]interface{}{"a": 1.0, "b": 2.0, "c": 3.0}
	if got := storedValues(t, fake, "AIOHTTP_SESSION_abc"); !reflect.DeepEqual(got, want) {
		t.Errorf("got=%v, want=%v", got, want)
	}
}

func TestClearCookieOnInvalidation(t *testing.T) {
	store, fake := newDynamoStore(Options{})
	wantNoError(t, store.provision(context.Background()))
	putItem(t, fake, "AIOHTTP_SESSION_abc", `{"a":1,"b":2}`)

	req := newRequest(&http.Cookie{Name: DefaultCookieName, Value: "abc"})
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Options.MaxAge = -1
	rsp := httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))

	header := rsp.Header().Get("Set-Cookie")
	for _, want := range []string{
		"AIOHTTP_SESSION=;",
		"Path=/",
		"Expires=Thu, 01 Jan 1970 00:00:00 GMT",
		"Max-Age=0",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("got=%q, want %q", header, want)
		}
	}

	if got := storedValues(t, fake, "AIOHTTP_SESSION_abc"); len(got) != 0 {
		t.Errorf("got=%v, want empty", got)
	}
	if _, ok := fake.Item(tableName, "AIOHTTP_SESSION_abc")["expires_at"]; !ok {
		t.Error("got no expires_at, want expires_at")
	}

	// the invalidated identity no longer loads
	session, err = store.New(req, DefaultCookieName)
	wantNoError(t, err)
	if !session.IsNew {
		t.Error("got=existing, want=new")
	}
}

func TestInvalidateNewSession(t *testing.T) {
	store, fake := newDynamoStore(Options{})
	req := newRequest()
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Values["a"] = 1
	session.Options.MaxAge = -1
	rsp := httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))

	if session.ID == "" {
		t.Fatal("got empty id, want id")
	}
	header := rsp.Header().Get("Set-Cookie")
	for _, want := range []string{"AIOHTTP_SESSION=;", "Max-Age=0"} {
		if !strings.Contains(header, want) {
			t.Errorf("got=%q, want %q", header, want)
		}
	}

	key := "AIOHTTP_SESSION_" + session.ID
	if got := storedValues(t, fake, key); len(got) != 0 {
		t.Errorf("got=%v, want empty", got)
	}
	if _, ok := fake.Item(tableName, key)["expires_at"]; !ok {
		t.Error("got no expires_at, want expires_at")
	}

	req = newRequest(&http.Cookie{Name: DefaultCookieName, Value: session.ID})
	session, err = store.New(req, DefaultCookieName)
	wantNoError(t, err)
	if !session.IsNew {
		t.Error("got=existing, want=new")
	}
}

func TestRemovingAllValuesInvalidates(t *testing.T) {
	store := New(memory.New(), Options{})
	req := newRequest()
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Values["a"] = "b"
	rsp := httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))

	req = newRequest(responseCookie(t, rsp, DefaultCookieName))
	session, err = store.New(req, DefaultCookieName)
	wantNoError(t, err)
	delete(session.Values, "a")
	rsp = httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))
	if got := responseCookie(t, rsp, DefaultCookieName); got.MaxAge >= 0 || got.Value != "" {
		t.Errorf("got=%v, want deleted cookie", got)
	}
}

func TestCustomNewID(t *testing.T) {
	now := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	nowFunc = func() time.Time { return now }
	defer restoreStubs()

	var calls int
	store, fake := newDynamoStore(Options{
		Cookie: sessions.Options{Path: "/", HttpOnly: true, MaxAge: 8},
		NewID: func() (string, error) {
			calls++
			return "test-key", nil
		},
	})

	req := newRequest()
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Values["key"] = "value"
	if !session.IsNew {
		t.Error("got=existing, want=new")
	}
	rsp := httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))

	if got, want := calls, 1; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	cookie := responseCookie(t, rsp, DefaultCookieName)
	if got, want := cookie.Value, "test-key"; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	if got, want := cookie.MaxAge, 8; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	if got, want := storedValues(t, fake, "AIOHTTP_SESSION_test-key")["key"], "value"; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	expiresAt := fake.Item(tableName, "AIOHTTP_SESSION_test-key")["expires_at"]
	if got, want := aws.StringValue(expiresAt.N), "4070908808"; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}

	// saving again keeps the identity
	rsp = httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))
	if got, want := calls, 1; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	if got, want := responseCookie(t, rsp, DefaultCookieName).Value, "test-key"; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
}

func TestNewIDFailure(t *testing.T) {
	store := New(memory.New(), Options{
		NewID: func() (string, error) { return "", nil },
	})
	req := newRequest()
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	if err := store.Save(req, httptest.NewRecorder(), session); err == nil {
		t.Fatal("got=nil, want=non-nil")
	}

	store = New(memory.New(), Options{
		NewID: func() (string, error) { return strings.Repeat("x", 300), nil },
	})
	session, err = store.New(req, DefaultCookieName)
	wantNoError(t, err)
	if err := store.Save(req, httptest.NewRecorder(), session); err == nil {
		t.Fatal("got=nil, want=non-nil")
	}
}

func TestStoreUnavailable(t *testing.T) {
	metrics := NewMetrics(nil)
	store, fake := newDynamoStore(Options{Metrics: metrics})
	wantNoError(t, store.provision(context.Background()))
	fake.Err = awserr.New("ServiceUnavailable", "try later", nil)

	req := newRequest(&http.Cookie{Name: DefaultCookieName, Value: "abc"})
	session, err := store.New(req, DefaultCookieName)
	if err == nil {
		t.Fatal("got=nil, want=non-nil")
	}
	if session == nil {
		t.Fatal("got=nil, want=non-nil session")
	}
	if err := store.Save(req, httptest.NewRecorder(), session); err == nil {
		t.Fatal("got=nil, want=non-nil")
	}
	if got, want := testutil.ToFloat64(metrics.errors.WithLabelValues("load")), 1.0; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	if got, want := testutil.ToFloat64(metrics.errors.WithLabelValues("save")), 1.0; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
}

func TestProvisionOnce(t *testing.T) {
	store, fake := newDynamoStore(Options{})

	var cookie *http.Cookie
	for i := 0; i < 3; i++ {
		req := newRequest()
		if cookie != nil {
			req = newRequest(cookie)
		}
		session, err := store.New(req, DefaultCookieName)
		wantNoError(t, err)
		session.Values["n"] = i
		rsp := httptest.NewRecorder()
		wantNoError(t, store.Save(req, rsp, session))
		cookie = responseCookie(t, rsp, DefaultCookieName)
	}
	if got, want := fake.Calls("ListTables"), 1; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	if got, want := fake.Calls("CreateTable"), 1; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}

	// the flag belongs to the store, not the process
	other := New(ddbstorage.New(fake, tableName), Options{})
	wantNoError(t, other.provision(context.Background()))
	if got, want := fake.Calls("ListTables"), 2; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	if got, want := fake.Calls("CreateTable"), 1; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
}

func TestProvisionError(t *testing.T) {
	fake := testhelper.NewDynamoDB()
	fake.NeverActivate = true
	db := ddbstorage.New(fake, tableName)
	db.Table = ddbstorage.TableOptions{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}
	store := New(db, Options{})

	req := newRequest()
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Values["a"] = 1
	err = store.Save(req, httptest.NewRecorder(), session)
	if _, ok := err.(*storage.ProvisionError); !ok {
		t.Fatalf("got=%v, want=*storage.ProvisionError", err)
	}

	// not remembered: the next request tries again
	describes := fake.Calls("DescribeTable")
	fake.NeverActivate = false
	wantNoError(t, store.Save(req, httptest.NewRecorder(), session))
	if fake.Calls("DescribeTable") <= describes {
		t.Error("want provisioning to be retried")
	}
}

func TestSignedCookie(t *testing.T) {
	codecs := CodecsFromSecrets(0, []byte("first secret"))
	store := New(memory.New(), Options{Codecs: codecs})

	req := newRequest()
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Values["a"] = "b"
	rsp := httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))
	cookie := responseCookie(t, rsp, DefaultCookieName)
	if cookie.Value == session.ID {
		t.Fatalf("got=%v, want encoded value", cookie.Value)
	}

	loaded, err := store.New(newRequest(cookie), DefaultCookieName)
	wantNoError(t, err)
	if got, want := loaded.ID, session.ID; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}
	if got, want := loaded.Values["a"], "b"; got != want {
		t.Fatalf("got=%v, want=%v", got, want)
	}

	// a rotated secret still decodes cookies from the previous secret
	rotated := New(memory.New(), Options{
		Codecs: CodecsFromSecrets(0, []byte("second secret"), []byte("first secret")),
	})
	id, ok := rotated.decodeCookie(DefaultCookieName, cookie.Value)
	if !ok || id != session.ID {
		t.Fatalf("got=%v,%v, want=%v,true", id, ok, session.ID)
	}

	// a raw identity is not accepted when cookies are signed
	tampered := &http.Cookie{Name: DefaultCookieName, Value: session.ID}
	loaded, err = store.New(newRequest(tampered), DefaultCookieName)
	wantNoError(t, err)
	if !loaded.IsNew {
		t.Error("got=existing, want=new")
	}
}

func TestOversizeCookie(t *testing.T) {
	store, fake := newDynamoStore(Options{})
	req := newRequest(&http.Cookie{Name: DefaultCookieName, Value: strings.Repeat("a", maxIDLength+1)})
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	if !session.IsNew {
		t.Error("got=existing, want=new")
	}
	if got := fake.Calls("GetItem"); got != 0 {
		t.Errorf("got=%v, want=0", got)
	}
}

func TestCookieOptions(t *testing.T) {
	tests := []struct {
		disableHttpOnly bool
		wantHttpOnly    bool
	}{
		{false, true},
		{true, false},
	}
	for tn, tt := range tests {
		store := New(memory.New(), Options{
			CookieName: "sid",
			Cookie: sessions.Options{
				Domain:   "example.com",
				MaxAge:   3600,
				Secure:   true,
				SameSite: http.SameSiteLaxMode,
			},
			DisableHttpOnly: tt.disableHttpOnly,
		})
		req := newRequest()
		session, err := store.Session(req)
		wantNoError(t, err)
		if got, want := session.Name(), "sid"; got != want {
			t.Fatalf("%d: got=%v, want=%v", tn, got, want)
		}
		session.Values["a"] = 1
		rsp := httptest.NewRecorder()
		wantNoError(t, sessions.Save(req, rsp))

		cookie := responseCookie(t, rsp, "sid")
		if got, want := cookie.Domain, "example.com"; got != want {
			t.Errorf("%d: got=%v, want=%v", tn, got, want)
		}
		if got, want := cookie.Path, "/"; got != want {
			t.Errorf("%d: got=%v, want=%v", tn, got, want)
		}
		if got, want := cookie.MaxAge, 3600; got != want {
			t.Errorf("%d: got=%v, want=%v", tn, got, want)
		}
		if !cookie.Secure {
			t.Errorf("%d: got=false, want=true", tn)
		}
		if got, want := cookie.HttpOnly, tt.wantHttpOnly; got != want {
			t.Errorf("%d: got=%v, want=%v", tn, got, want)
		}
	}
}

// TestGorillaRegistry follows a session through the sessions registry
// and flash messages, as a handler would use it.
func TestGorillaRegistry(t *testing.T) {
	store, _ := newDynamoStore(Options{})

	req := newRequest()
	rsp := httptest.NewRecorder()
	session, err := store.Get(req, "session-key")
	wantNoError(t, err)
	if flashes := session.Flashes(); len(flashes) != 0 {
		t.Errorf("Expected empty flashes; Got %v", flashes)
	}
	session.AddFlash("foo")
	session.AddFlash("bar")
	session.AddFlash("baz", "custom_key")
	wantNoError(t, sessions.Save(req, rsp))
	cookies := rsp.Header()["Set-Cookie"]
	if len(cookies) != 1 {
		t.Fatal("No cookies. Header:", rsp.Header())
	}

	req = newRequest()
	req.Header.Add("Cookie", cookies[0])
	rsp = httptest.NewRecorder()
	session, err = store.Get(req, "session-key")
	wantNoError(t, err)
	flashes := session.Flashes()
	if len(flashes) != 2 || flashes[0] != "foo" || flashes[1] != "bar" {
		t.Errorf("Expected foo,bar; Got %v", flashes)
	}
	if flashes = session.Flashes("custom_key"); len(flashes) != 1 || flashes[0] != "baz" {
		t.Errorf("Expected baz; Got %v", flashes)
	}

	// same request returns the cached session
	again, err := store.Get(req, "session-key")
	wantNoError(t, err)
	if again != session {
		t.Error("want cached session")
	}
}

func TestMetrics(t *testing.T) {
	metrics := NewMetrics(nil)
	store := New(memory.New(), Options{Metrics: metrics})

	req := newRequest()
	session, err := store.New(req, DefaultCookieName)
	wantNoError(t, err)
	session.Values["a"] = 1
	rsp := httptest.NewRecorder()
	wantNoError(t, store.Save(req, rsp, session))

	req = newRequest(responseCookie(t, rsp, DefaultCookieName))
	session, err = store.New(req, DefaultCookieName)
	wantNoError(t, err)
	wantNoError(t, store.Save(req, httptest.NewRecorder(), session))
	session.Options.MaxAge = -1
	wantNoError(t, store.Save(req, httptest.NewRecorder(), session))
	_, err = store.New(newRequest(&http.Cookie{Name: DefaultCookieName, Value: "nope"}), DefaultCookieName)
	wantNoError(t, err)

	for _, tt := range []struct {
		counter float64
		want    float64
	}{
		{testutil.ToFloat64(metrics.loads.WithLabelValues(loadNoCookie)), 1},
		{testutil.ToFloat64(metrics.loads.WithLabelValues(loadExisting)), 1},
		{testutil.ToFloat64(metrics.loads.WithLabelValues(loadMissing)), 1},
		{testutil.ToFloat64(metrics.saves.WithLabelValues(saveSet)), 1},
		{testutil.ToFloat64(metrics.saves.WithLabelValues(saveRefresh)), 1},
		{testutil.ToFloat64(metrics.saves.WithLabelValues(saveExpire)), 1},
	} {
		if tt.counter != tt.want {
			t.Errorf("got=%v, want=%v", tt.counter, tt.want)
		}
	}
}

func wantNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("got=%v, want=nil", err)
	}
}
