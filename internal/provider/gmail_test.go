package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gm "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// fakeGmail is an in-memory stand-in for the Gmail labels API.
type fakeGmail struct {
	mu        sync.Mutex
	labels    []*gm.Label
	nextID    int
	failNames map[string]bool
	creates   []string
	// onCreate, when set, runs after each successful server-side create.
	onCreate func()
}

func newFakeGmail(seed ...*gm.Label) *fakeGmail {
	return &fakeGmail{labels: seed, failNames: map[string]bool{}}
}

func (f *fakeGmail) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(&gm.ListLabelsResponse{Labels: f.labels})
		case http.MethodPost:
			var label gm.Label
			if err := json.NewDecoder(r.Body).Decode(&label); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if f.failNames[label.Name] {
				http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
				return
			}
			f.nextID++
			label.Id = fmt.Sprintf("Label_%d", f.nextID)
			label.Type = "user"
			f.labels = append(f.labels, &label)
			f.creates = append(f.creates, label.Name)
			if f.onCreate != nil {
				f.onCreate()
			}
			json.NewEncoder(w).Encode(&label)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	return mux
}

func newTestGmailAdapter(t *testing.T, fake *fakeGmail) *GmailAdapter {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	svc, err := gm.NewService(context.Background(),
		option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	return NewGmailAdapter(svc)
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name     string
		raw      *gm.Label
		wantPath []string
		wantType ItemType
	}{
		{
			name:     "nested user label",
			raw:      &gm.Label{Id: "1", Name: "Sales/New Leads", Type: "user"},
			wantPath: []string{"Sales", "New Leads"},
			wantType: TypeUser,
		},
		{
			name:     "flat user label",
			raw:      &gm.Label{Id: "2", Name: "Urgent", Type: "user"},
			wantPath: []string{"Urgent"},
			wantType: TypeUser,
		},
		{
			name:     "system label by type",
			raw:      &gm.Label{Id: "3", Name: "INBOX", Type: "system"},
			wantPath: []string{"INBOX"},
			wantType: TypeSystem,
		},
		{
			name:     "category label",
			raw:      &gm.Label{Id: "4", Name: "CATEGORY_PROMOTIONS", Type: "user"},
			wantPath: []string{"CATEGORY_PROMOTIONS"},
			wantType: TypeSystem,
		},
		{
			name:     "reserved name without system type",
			raw:      &gm.Label{Id: "5", Name: "SPAM", Type: "user"},
			wantPath: []string{"SPAM"},
			wantType: TypeSystem,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			item := parseLabel(tc.raw)
			assert.Equal(t, tc.wantPath, item.Path)
			assert.Equal(t, tc.wantType, item.Type)
			assert.Equal(t, tc.raw.Id, item.ID)
		})
	}
}

func TestGmailDiscover(t *testing.T) {
	adapter := newTestGmailAdapter(t, newFakeGmail(
		&gm.Label{Id: "s1", Name: "INBOX", Type: "system"},
		&gm.Label{Id: "u1", Name: "Urgent", Type: "user", MessagesTotal: 7},
		&gm.Label{Id: "u2", Name: "Sales/New Leads", Type: "user"},
	))

	res, err := adapter.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Gmail, res.Provider)
	assert.Equal(t, 3, res.TotalItems)
	assert.Equal(t, 2, res.UserItems)
	assert.Equal(t, 1, res.SystemItems)
	assert.False(t, res.DiscoveredAt.IsZero())

	// System labels stay out of the user-facing tree.
	require.Len(t, res.Taxonomy, 2)
	assert.Equal(t, "Sales", res.Taxonomy[0].Name)
	assert.Equal(t, "Urgent", res.Taxonomy[1].Name)
	assert.EqualValues(t, 7, res.Taxonomy[1].Item.MessagesTotal)
}

func TestGmailProvisionIdempotence(t *testing.T) {
	adapter := newTestGmailAdapter(t, newFakeGmail())
	ctx := context.Background()

	items := []ProvisionItem{
		{Path: []string{"SALES"}, Color: "#16a766"},
		{Path: []string{"SALES", "New Leads"}, Color: "#43d692"},
		{Path: []string{"SUPPORT"}},
	}

	first, err := adapter.Provision(ctx, items)
	require.NoError(t, err)
	assert.Len(t, first.Created, 3)
	assert.Empty(t, first.Skipped)
	assert.Empty(t, first.Failed)

	second, err := adapter.Provision(ctx, items)
	require.NoError(t, err)
	assert.Empty(t, second.Created)
	assert.Empty(t, second.Failed)
	require.Len(t, second.Skipped, 3)
	for _, s := range second.Skipped {
		assert.Equal(t, ReasonAlreadyExists, s.Reason)
	}
}

func TestGmailProvisionParentFirst(t *testing.T) {
	fake := newFakeGmail()
	adapter := newTestGmailAdapter(t, fake)

	// Child before parent in input order.
	_, err := adapter.Provision(context.Background(), []ProvisionItem{
		{Path: []string{"SALES", "New Leads"}},
		{Path: []string{"SALES"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"SALES", "SALES/New Leads"}, fake.creates)
}

func TestGmailProvisionCreatesMissingAncestors(t *testing.T) {
	fake := newFakeGmail()
	adapter := newTestGmailAdapter(t, fake)

	report, err := adapter.Provision(context.Background(), []ProvisionItem{
		{Path: []string{"SALES", "New Leads"}},
	})
	require.NoError(t, err)

	// Gmail labels are flat: the missing "SALES" ancestor becomes its own
	// label, created before the requested item.
	assert.Equal(t, []string{"SALES", "SALES/New Leads"}, fake.creates)
	require.Len(t, report.Created, 2)
	assert.Equal(t, []string{"SALES"}, report.Created[0].Path)
	assert.Equal(t, []string{"SALES", "New Leads"}, report.Created[1].Path)
}

func TestGmailProvisionCaseInsensitiveSkip(t *testing.T) {
	adapter := newTestGmailAdapter(t, newFakeGmail(
		&gm.Label{Id: "u1", Name: "sales", Type: "user"},
	))

	report, err := adapter.Provision(context.Background(), []ProvisionItem{
		{Path: []string{"SALES"}},
	})
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, ReasonAlreadyExists, report.Skipped[0].Reason)
}

func TestGmailProvisionPartialFailure(t *testing.T) {
	fake := newFakeGmail()
	fake.failNames["BROKEN"] = true
	adapter := newTestGmailAdapter(t, fake)

	report, err := adapter.Provision(context.Background(), []ProvisionItem{
		{Path: []string{"BROKEN"}},
		{Path: []string{"SALES"}},
	})
	require.NoError(t, err)

	// The failing item is recorded and its siblings still go through.
	require.Len(t, report.Failed, 1)
	assert.Equal(t, []string{"BROKEN"}, report.Failed[0].Path)
	require.Len(t, report.Created, 1)
	assert.Equal(t, []string{"SALES"}, report.Created[0].Path)
}

func TestGmailProvisionInvalidColor(t *testing.T) {
	fake := newFakeGmail()
	adapter := newTestGmailAdapter(t, fake)

	report, err := adapter.Provision(context.Background(), []ProvisionItem{
		{Path: []string{"SALES"}, Color: "invalid"},
	})
	require.NoError(t, err)

	// Bad color falls back to the provider default instead of failing.
	require.Len(t, report.Created, 1)
	assert.Empty(t, report.Failed)

	for _, l := range fake.labels {
		if l.Name == "SALES" {
			assert.Nil(t, l.Color)
		}
	}
}

func TestGmailProvisionValidColorSnapsToPalette(t *testing.T) {
	fake := newFakeGmail()
	adapter := newTestGmailAdapter(t, fake)

	_, err := adapter.Provision(context.Background(), []ProvisionItem{
		{Path: []string{"SALES"}, Color: "#FF0000"},
	})
	require.NoError(t, err)

	for _, l := range fake.labels {
		require.NotNil(t, l.Color)
		found := false
		for _, p := range gmailPalette {
			if p.Background == l.Color.BackgroundColor {
				found = true
			}
		}
		assert.True(t, found, "background %s not in palette", l.Color.BackgroundColor)
	}
}

func TestGmailProvisionRejectsInvalidRequest(t *testing.T) {
	adapter := newTestGmailAdapter(t, newFakeGmail())

	_, err := adapter.Provision(context.Background(), []ProvisionItem{
		{Path: []string{strings.Repeat("x", 101)}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestGmailProvisionStopsAfterCancellation(t *testing.T) {
	fake := newFakeGmail()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake.onCreate = cancel
	adapter := newTestGmailAdapter(t, fake)

	report, err := adapter.Provision(ctx, []ProvisionItem{
		{Path: []string{"ALPHA"}},
		{Path: []string{"BETA"}},
	})
	require.NoError(t, err)

	// The first create ran server-side; once the context is gone nothing
	// further is issued, so the second item never reaches the provider and
	// gets no outcome at all.
	assert.Equal(t, []string{"ALPHA"}, fake.creates)
	assert.Equal(t, 1, len(report.Created)+len(report.Failed))
	assert.Empty(t, report.Skipped)
	for _, c := range report.Created {
		assert.Equal(t, []string{"ALPHA"}, c.Path)
	}
	for _, f := range report.Failed {
		assert.Equal(t, []string{"ALPHA"}, f.Path)
	}
}

func TestGmailProvisionNameTooLong(t *testing.T) {
	adapter := newTestGmailAdapter(t, newFakeGmail())

	// Five 60-char segments join to a name beyond Gmail's 225-char limit.
	seg := strings.Repeat("x", 60)
	report, err := adapter.Provision(context.Background(), []ProvisionItem{
		{Path: []string{seg, seg, seg, seg, seg}},
	})
	require.NoError(t, err)
	assert.Empty(t, report.Created)
	require.Len(t, report.Failed, 1)
}
