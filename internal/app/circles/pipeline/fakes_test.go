package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/circlehub/internal/app/circles/assignment"
	groupstore "github.com/dalemusser/circlehub/internal/app/store/groups"
	invitationstore "github.com/dalemusser/circlehub/internal/app/store/invitations"
	poolstore "github.com/dalemusser/circlehub/internal/app/store/pools"
	"github.com/dalemusser/circlehub/internal/app/system/auditlog"
	"github.com/dalemusser/circlehub/internal/app/system/mailer"
	"github.com/dalemusser/circlehub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// In-memory stand-ins that reproduce the guarded writes of the Mongo
// stores: status compare-and-set, pending-only respond, capacity-guarded
// push and leader-clearing pull.

type fakePools struct {
	mu    sync.Mutex
	pools map[primitive.ObjectID]models.Pool

	// casErr, keyed by the target status, fails CompareAndSetStatus.
	casErr map[models.PoolStatus]error
	// incErr fails IncStats once, then clears.
	incErr error
}

func newFakePools() *fakePools {
	return &fakePools{
		pools:  make(map[primitive.ObjectID]models.Pool),
		casErr: make(map[models.PoolStatus]error),
	}
}

func (f *fakePools) Create(_ context.Context, p models.Pool) (models.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.NameCI = text.Fold(p.Name)
	for _, other := range f.pools {
		if other.OrganizationID == p.OrganizationID && other.NameCI == p.NameCI {
			return models.Pool{}, poolstore.ErrDuplicatePoolName
		}
	}
	f.pools[p.ID] = p
	return p, nil
}

func (f *fakePools) GetByID(_ context.Context, id primitive.ObjectID) (models.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[id]
	if !ok {
		return models.Pool{}, mongo.ErrNoDocuments
	}
	return p, nil
}

func (f *fakePools) ListByOrg(_ context.Context, orgID primitive.ObjectID, status models.PoolStatus) ([]models.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Pool
	for _, p := range f.pools {
		if p.OrganizationID == orgID && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameCI < out[j].NameCI })
	return out, nil
}

func (f *fakePools) CompareAndSetStatus(_ context.Context, from models.PoolStatus, next models.Pool) (models.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.casErr[next.Status]; err != nil {
		return models.Pool{}, err
	}
	p, ok := f.pools[next.ID]
	if !ok {
		return models.Pool{}, mongo.ErrNoDocuments
	}
	if p.Status != from {
		return models.Pool{}, poolstore.ErrStatusChanged
	}
	p.Status = next.Status
	p.UpdatedAt = next.UpdatedAt
	if next.CompletedAt != nil {
		p.CompletedAt = next.CompletedAt
	}
	if next.CancelledAt != nil {
		p.CancelledAt = next.CancelledAt
	}
	f.pools[p.ID] = p
	return p, nil
}

func (f *fakePools) IncStats(_ context.Context, id primitive.ObjectID, invited, accepted int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.incErr; err != nil {
		f.incErr = nil
		return err
	}
	p, ok := f.pools[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	p.Stats.TotalInvited += invited
	p.Stats.TotalAccepted += accepted
	f.pools[id] = p
	return nil
}

func (f *fakePools) SetAcceptedCount(_ context.Context, id primitive.ObjectID, expected, n int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pools[id]
	if !ok || p.Stats.TotalAccepted != expected {
		return false, nil
	}
	p.Stats.TotalAccepted = n
	f.pools[id] = p
	return true, nil
}

func (f *fakePools) get(t *testing.T, id primitive.ObjectID) models.Pool {
	t.Helper()
	p, err := f.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

type fakeInvitations struct {
	mu    sync.Mutex
	order []primitive.ObjectID
	invs  map[primitive.ObjectID]models.Invitation

	// beforeRespond runs ahead of Respond's pending check.
	beforeRespond func(id primitive.ObjectID)
}

func newFakeInvitations() *fakeInvitations {
	return &fakeInvitations{invs: make(map[primitive.ObjectID]models.Invitation)}
}

func (f *fakeInvitations) InsertMany(_ context.Context, invs []models.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range invs {
		for _, other := range f.invs {
			if other.PoolID == inv.PoolID && other.EmailCI == inv.EmailCI {
				return invitationstore.ErrDuplicateEmail
			}
			if other.TokenHash == inv.TokenHash {
				return invitationstore.ErrDuplicateToken
			}
		}
	}
	for _, inv := range invs {
		f.invs[inv.ID] = inv
		f.order = append(f.order, inv.ID)
	}
	return nil
}

func (f *fakeInvitations) GetByID(_ context.Context, id primitive.ObjectID) (models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invs[id]
	if !ok {
		return models.Invitation{}, mongo.ErrNoDocuments
	}
	return inv, nil
}

func (f *fakeInvitations) GetByTokenHash(_ context.Context, hash string) (models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invs {
		if inv.TokenHash == hash {
			return inv, nil
		}
	}
	return models.Invitation{}, mongo.ErrNoDocuments
}

func (f *fakeInvitations) ListByPool(_ context.Context, poolID primitive.ObjectID) ([]models.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Invitation
	for _, id := range f.order {
		if inv := f.invs[id]; inv.PoolID == poolID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvitations) CountAccepted(_ context.Context, poolID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, inv := range f.invs {
		if inv.PoolID == poolID && inv.Status == models.InvitationAccepted {
			n++
		}
	}
	return n, nil
}

func (f *fakeInvitations) EmailsForPool(_ context.Context, poolID primitive.ObjectID) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range f.order {
		if inv := f.invs[id]; inv.PoolID == poolID {
			out = append(out, inv.EmailCI)
		}
	}
	return out, nil
}

func (f *fakeInvitations) AcceptedUserIDs(_ context.Context, poolID primitive.ObjectID) ([]primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []primitive.ObjectID
	for _, id := range f.order {
		inv := f.invs[id]
		if inv.PoolID == poolID && inv.Status == models.InvitationAccepted && inv.AcceptedByUserID != nil {
			out = append(out, *inv.AcceptedByUserID)
		}
	}
	return out, nil
}

func (f *fakeInvitations) Respond(_ context.Context, inv models.Invitation) error {
	if f.beforeRespond != nil {
		f.beforeRespond(inv.ID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.invs[inv.ID]
	if !ok || stored.Status != models.InvitationPending {
		return invitationstore.ErrNotPending
	}
	stored.Status = inv.Status
	stored.AcceptedByUserID = inv.AcceptedByUserID
	stored.RespondedAt = inv.RespondedAt
	f.invs[inv.ID] = stored
	return nil
}

func (f *fakeInvitations) set(inv models.Invitation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.invs[inv.ID]; !ok {
		f.order = append(f.order, inv.ID)
	}
	f.invs[inv.ID] = inv
}

type fakeGroups struct {
	mu     sync.Mutex
	order  []primitive.ObjectID
	groups map[primitive.ObjectID]models.CircleGroup

	insertErr     error
	pullErr       error
	beforePush    func(groupID primitive.ObjectID)
	pushes, pulls int
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{groups: make(map[primitive.ObjectID]models.CircleGroup)}
}

func cloneGroup(g models.CircleGroup) models.CircleGroup {
	g.Members = append([]models.GroupMember{}, g.Members...)
	if g.LeaderID != nil {
		id := *g.LeaderID
		g.LeaderID = &id
	}
	return g
}

func (f *fakeGroups) GetByID(_ context.Context, id primitive.ObjectID) (models.CircleGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[id]
	if !ok {
		return models.CircleGroup{}, mongo.ErrNoDocuments
	}
	return cloneGroup(g), nil
}

func (f *fakeGroups) ListByPool(_ context.Context, poolID primitive.ObjectID) ([]models.CircleGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CircleGroup
	for _, id := range f.order {
		if g := f.groups[id]; g.PoolID == poolID {
			out = append(out, cloneGroup(g))
		}
	}
	return out, nil
}

func (f *fakeGroups) FindByMember(_ context.Context, poolID, userID primitive.ObjectID) (models.CircleGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		if g := f.groups[id]; g.PoolID == poolID && g.HasMember(userID) {
			return cloneGroup(g), nil
		}
	}
	return models.CircleGroup{}, mongo.ErrNoDocuments
}

func (f *fakeGroups) insertLocked(g models.CircleGroup) error {
	for _, other := range f.groups {
		if other.PoolID == g.PoolID && other.NameCI == g.NameCI {
			return groupstore.ErrDuplicateGroupName
		}
	}
	f.groups[g.ID] = cloneGroup(g)
	f.order = append(f.order, g.ID)
	return nil
}

func (f *fakeGroups) Create(_ context.Context, g models.CircleGroup) (models.CircleGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertLocked(g); err != nil {
		return models.CircleGroup{}, err
	}
	return g, nil
}

func (f *fakeGroups) InsertMany(_ context.Context, groups []models.CircleGroup) ([]models.CircleGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	for _, g := range groups {
		if err := f.insertLocked(g); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func (f *fakeGroups) PushMember(_ context.Context, groupID primitive.ObjectID, member models.GroupMember, maxSize int) error {
	if f.beforePush != nil {
		f.beforePush(groupID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok || g.HasMember(member.UserID) || (maxSize > 0 && len(g.Members) >= maxSize) {
		return groupstore.ErrPushRejected
	}
	g.Members = append(g.Members, member)
	f.groups[groupID] = g
	f.pushes++
	return nil
}

func (f *fakeGroups) PullMember(_ context.Context, groupID, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pullErr != nil {
		return f.pullErr
	}
	g, ok := f.groups[groupID]
	if !ok || !g.HasMember(userID) {
		return groupstore.ErrNotMember
	}
	kept := g.Members[:0:0]
	for _, m := range g.Members {
		if m.UserID != userID {
			kept = append(kept, m)
		}
	}
	g.Members = kept
	if g.LeaderID != nil && *g.LeaderID == userID {
		g.LeaderID = nil
	}
	f.groups[groupID] = g
	f.pulls++
	return nil
}

func (f *fakeGroups) SetLeader(_ context.Context, groupID, userID primitive.ObjectID) (models.CircleGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[groupID]
	if !ok || !g.HasMember(userID) {
		return models.CircleGroup{}, groupstore.ErrNotMember
	}
	leader := userID
	g.LeaderID = &leader
	f.groups[groupID] = g
	return cloneGroup(g), nil
}

func (f *fakeGroups) get(t *testing.T, id primitive.ObjectID) models.CircleGroup {
	t.Helper()
	g, err := f.GetByID(context.Background(), id)
	require.NoError(t, err)
	return g
}

type fakeDirectory struct {
	admins map[primitive.ObjectID]map[primitive.ObjectID]bool
	names  map[primitive.ObjectID]string
}

func (d *fakeDirectory) IsOrgAdmin(_ context.Context, orgID, userID primitive.ObjectID) (bool, error) {
	return d.admins[orgID][userID], nil
}

func (d *fakeDirectory) AdministersAny(_ context.Context, userID primitive.ObjectID) (bool, error) {
	for _, admins := range d.admins {
		if admins[userID] {
			return true, nil
		}
	}
	return false, nil
}

func (d *fakeDirectory) DisplayNames(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(ids))
	for _, id := range ids {
		if n, ok := d.names[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

type fakeOrgs map[primitive.ObjectID]bool

func (f fakeOrgs) Exists(_ context.Context, id primitive.ObjectID) (bool, error) {
	return f[id], nil
}

type sentInvitation struct {
	Email string
	Token string
	Pool  mailer.PoolContext
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentInvitation
}

func (m *fakeMailer) SendInvitation(_ context.Context, email, token string, pc mailer.PoolContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentInvitation{Email: email, Token: token, Pool: pc})
}

var baseTime = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// harness wires a Service to fresh fakes with one organization and one
// administrator.
type harness struct {
	svc    *Service
	pools  *fakePools
	invs   *fakeInvitations
	groups *fakeGroups
	dir    *fakeDirectory
	mail   *fakeMailer
	clock  *clock
	logs   *observer.ObservedLogs

	org   primitive.ObjectID
	admin primitive.ObjectID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	h := &harness{
		pools:  newFakePools(),
		invs:   newFakeInvitations(),
		groups: newFakeGroups(),
		mail:   &fakeMailer{},
		clock:  &clock{t: baseTime},
		logs:   logs,
		org:    primitive.NewObjectID(),
		admin:  primitive.NewObjectID(),
	}
	h.dir = &fakeDirectory{
		admins: map[primitive.ObjectID]map[primitive.ObjectID]bool{h.org: {h.admin: true}},
		names:  map[primitive.ObjectID]string{},
	}

	svc, err := New(Config{MinGroupSize: 3, MaxGroupSize: 6, InviteTTL: 48 * time.Hour}, Deps{
		Pools:         h.pools,
		Invitations:   h.invs,
		Groups:        h.groups,
		Directory:     h.dir,
		Organizations: fakeOrgs{h.org: true},
		Mailer:        h.mail,
		Audit:         auditlog.New(nil, log, auditlog.Config{}),
		Log:           log,
		Now:           h.clock.now,
		Rand:          func() (*rand.Rand, error) { return assignment.NewRand(42), nil },
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

// pool stores a pool directly in the given status.
func (h *harness) pool(t *testing.T, status models.PoolStatus, target int) models.Pool {
	t.Helper()
	p, err := h.pools.Create(context.Background(), models.Pool{
		ID:              primitive.NewObjectID(),
		OrganizationID:  h.org,
		Name:            "Pool " + primitive.NewObjectID().Hex(),
		Topic:           "Resilience",
		TargetGroupSize: target,
		Status:          status,
		CreatedByID:     h.admin,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	})
	require.NoError(t, err)
	return p
}

// accepted stores n accepted invitations for p and returns the users.
func (h *harness) accepted(t *testing.T, p models.Pool, n int) []primitive.ObjectID {
	t.Helper()
	users := make([]primitive.ObjectID, 0, n)
	for i := 0; i < n; i++ {
		uid := primitive.NewObjectID()
		at := baseTime
		h.dir.names[uid] = "Participant " + strconv.Itoa(i+1)
		h.invs.set(models.Invitation{
			ID:               primitive.NewObjectID(),
			PoolID:           p.ID,
			Email:            "p" + strconv.Itoa(i) + "@example.com",
			EmailCI:          "p" + strconv.Itoa(i) + "@example.com",
			TokenHash:        primitive.NewObjectID().Hex(),
			Status:           models.InvitationAccepted,
			IssuedAt:         baseTime,
			ExpiresAt:        baseTime.Add(48 * time.Hour),
			AcceptedByUserID: &uid,
			RespondedAt:      &at,
		})
		users = append(users, uid)
	}
	require.NoError(t, h.pools.IncStats(context.Background(), p.ID, n, n))
	return users
}

// group stores a group holding members directly.
func (h *harness) group(t *testing.T, p models.Pool, name string, members ...primitive.ObjectID) models.CircleGroup {
	t.Helper()
	ms := make([]models.GroupMember, 0, len(members))
	for _, id := range members {
		ms = append(ms, models.GroupMember{UserID: id, DisplayName: h.dir.names[id], JoinedAt: baseTime})
	}
	g, err := h.groups.Create(context.Background(), h.svc.membership.BuildGroupDocument(p.ID, name, ms))
	require.NoError(t, err)
	return g
}

func (h *harness) users(n int) []primitive.ObjectID {
	out := make([]primitive.ObjectID, n)
	for i := range out {
		out[i] = primitive.NewObjectID()
		h.dir.names[out[i]] = "User " + strconv.Itoa(i+1)
	}
	return out
}

func (h *harness) auditEvents(eventType string) int {
	return h.logs.FilterMessage("audit event").FilterField(zap.String("event_type", eventType)).Len()
}

var errBoom = errors.New("boom")
