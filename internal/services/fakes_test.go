package services

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"map-pin-backend/internal/models"
)

const fakePublicBase = "https://photos.test"

// fakeStorage records uploads and can fail the n-th Put call
type fakeStorage struct {
	mu         sync.Mutex
	putKeys    []string
	deleted    []string
	failAtCall int // 0-based Put call index to fail, -1 for never
	failErr    error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{failAtCall: -1}
}

func (f *fakeStorage) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := len(f.putKeys)
	f.putKeys = append(f.putKeys, key)
	if f.failAtCall >= 0 && call == f.failAtCall {
		if f.failErr != nil {
			return f.failErr
		}
		return errors.New("storage unavailable")
	}
	if body != nil {
		_, _ = io.Copy(io.Discard, body)
	}
	return nil
}

func (f *fakeStorage) PublicURL(key string) string {
	return fakePublicBase + "/" + key
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStorage) KeyFromURL(rawURL string) (string, bool) {
	return strings.CutPrefix(rawURL, fakePublicBase+"/")
}

func (f *fakeStorage) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.putKeys)
}

// fakePhotoStore keeps photo rows in memory
type fakePhotoStore struct {
	rows     []models.Photo
	batchErr error
}

func (f *fakePhotoStore) CreateBatch(_ context.Context, photos []models.Photo) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	f.rows = append(f.rows, photos...)
	return nil
}

func (f *fakePhotoStore) GetByPinID(_ context.Context, pinID string) ([]models.Photo, error) {
	var photos []models.Photo
	for _, row := range f.rows {
		if row.PinID == pinID {
			photos = append(photos, row)
		}
	}
	sort.Slice(photos, func(i, j int) bool { return photos[i].OrderIndex < photos[j].OrderIndex })
	return photos, nil
}

func (f *fakePhotoStore) DeleteByIDs(_ context.Context, ids []string) ([]string, error) {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var urls []string
	var kept []models.Photo
	for _, row := range f.rows {
		if drop[row.ID] {
			urls = append(urls, row.URL)
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return urls, nil
}

func (f *fakePhotoStore) UpdateOrder(_ context.Context, photoID string, caption *string, orderIndex int) error {
	for i := range f.rows {
		if f.rows[i].ID == photoID {
			f.rows[i].Caption = caption
			f.rows[i].OrderIndex = orderIndex
			return nil
		}
	}
	return ErrNotFound
}

// fakePinStore keeps pin rows in memory
type fakePinStore struct {
	pins      map[string]models.Pin
	createErr error
}

func newFakePinStore() *fakePinStore {
	return &fakePinStore{pins: make(map[string]models.Pin)}
}

func (f *fakePinStore) Create(_ context.Context, pin *models.Pin) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.pins[pin.ID] = *pin
	return nil
}

func (f *fakePinStore) GetByID(_ context.Context, id string) (*models.Pin, error) {
	pin, ok := f.pins[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &pin, nil
}

func (f *fakePinStore) Update(_ context.Context, pin *models.Pin) error {
	if _, ok := f.pins[pin.ID]; !ok {
		return ErrNotFound
	}
	f.pins[pin.ID] = *pin
	return nil
}

func (f *fakePinStore) Delete(_ context.Context, id string) error {
	if _, ok := f.pins[id]; !ok {
		return ErrNotFound
	}
	delete(f.pins, id)
	return nil
}

func (f *fakePinStore) ListWithPhotos(_ context.Context) ([]models.PinWithPhotos, error) {
	var out []models.PinWithPhotos
	for _, pin := range f.pins {
		out = append(out, models.PinWithPhotos{Pin: pin, Photos: []models.Photo{}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// fakeIdentity resolves to a fixed user or error
type fakeIdentity struct {
	user  *models.User
	err   error
	calls int
}

func (f *fakeIdentity) ResolveIdentity(_ context.Context) (*models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

// fakeNotifier records broadcast pin-change events
type fakeNotifier struct {
	events []string
}

func (f *fakeNotifier) PinsChanged(action, pinID string) {
	f.events = append(f.events, action+":"+pinID)
}

// fakeUserStore keeps profiles in memory; getErrs is consumed one error per
// GetByID call before the store answers normally.
type fakeUserStore struct {
	users   map[string]models.User
	hashes  map[string]string
	getErrs []error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:  make(map[string]models.User),
		hashes: make(map[string]string),
	}
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	user, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, string, error) {
	for _, user := range f.users {
		if user.Email == email {
			return &user, f.hashes[user.ID], nil
		}
	}
	return nil, "", ErrNotFound
}

func (f *fakeUserStore) CreateAccount(_ context.Context, user *models.User, passwordHash string) error {
	f.users[user.ID] = *user
	f.hashes[user.ID] = passwordHash
	return nil
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserStore) EmailExists(_ context.Context, email string) (bool, error) {
	for _, user := range f.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// fakeSessionStore keeps sessions in memory
type fakeSessionStore struct {
	sessions map[string]SessionRecord
	refresh  map[string]string // refresh token -> sid
	deleted  []string
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: make(map[string]SessionRecord),
		refresh:  make(map[string]string),
	}
}

func (f *fakeSessionStore) Create(_ context.Context, session SessionRecord, refreshToken string) error {
	f.sessions[session.SID] = session
	f.refresh[refreshToken] = session.SID
	return nil
}

func (f *fakeSessionStore) Get(_ context.Context, sid string) (SessionRecord, error) {
	session, ok := f.sessions[sid]
	if !ok {
		return SessionRecord{}, ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessionStore) GetByRefreshToken(_ context.Context, refreshToken string) (SessionRecord, error) {
	sid, ok := f.refresh[refreshToken]
	if !ok {
		return SessionRecord{}, ErrRefreshNotFound
	}
	session, ok := f.sessions[sid]
	if !ok {
		return SessionRecord{}, ErrRefreshNotFound
	}
	return session, nil
}

func (f *fakeSessionStore) Delete(_ context.Context, sid string) error {
	delete(f.sessions, sid)
	for token, mapped := range f.refresh {
		if mapped == sid {
			delete(f.refresh, token)
		}
	}
	f.deleted = append(f.deleted, sid)
	return nil
}

func (f *fakeSessionStore) DeleteAllForUser(_ context.Context, userID string) error {
	for sid, session := range f.sessions {
		if session.UserID == userID {
			_ = f.Delete(context.Background(), sid)
		}
	}
	return nil
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}
