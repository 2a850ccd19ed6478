package server

import (
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/site"
)

// archivedSite serves the newest archived bundle. The bundle is loaded once
// per run ID; concurrent loads of the same run share one query.
type archivedSite struct {
	store Archive
	group singleflight.Group

	mu      sync.RWMutex
	runID   string
	created time.Time
	bundle  *site.Bundle
}

func (a *archivedSite) current(r *http.Request) (*site.Bundle, time.Time, error) {
	latest, err := a.store.Latest(r.Context())
	if err != nil {
		return nil, time.Time{}, err
	}

	a.mu.RLock()
	if a.runID == latest.RunID && a.bundle != nil {
		b, created := a.bundle, a.created
		a.mu.RUnlock()
		return b, created, nil
	}
	a.mu.RUnlock()

	v, err, _ := a.group.Do(latest.RunID, func() (any, error) {
		b, err := a.store.Bundle(r.Context(), latest.RunID)
		if err != nil {
			return nil, err
		}
		a.mu.Lock()
		a.runID, a.created, a.bundle = latest.RunID, latest.CreatedAt, b
		a.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	b, ok := v.(*site.Bundle)
	if !ok {
		return nil, time.Time{}, errors.InternalError("archived bundle has unexpected type").Build()
	}
	return b, latest.CreatedAt, nil
}

func (a *archivedSite) serve(w http.ResponseWriter, r *http.Request, adapter *errors.HTTPErrorAdapter) {
	b, created, err := a.current(r)
	if err != nil {
		adapter.WriteErrorResponse(w, r, err)
		return
	}

	rel := bundlePath(r.URL.Path)
	body, ok := b.Files[rel]
	if !ok {
		adapter.WriteErrorResponse(w, r, errors.NotFoundError("page not found").
			WithContext("path", r.URL.Path).Build())
		return
	}
	http.ServeContent(w, r, rel, created, strings.NewReader(body))
}

// bundlePath maps a request path onto a bundle key. Directory requests
// resolve to their index.html.
func bundlePath(urlPath string) string {
	rel := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if rel == "" || strings.HasSuffix(urlPath, "/") {
		return path.Join(rel, site.FileIndex)
	}
	return rel
}
