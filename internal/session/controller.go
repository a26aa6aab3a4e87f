// Package session owns the authentication state machine: startup restore,
// login, silent refresh, warning and expiry, logout and role selection.
//
// A Controller is built once by the host and shared by reference. Timer
// callbacks run on their own goroutines, so every state change happens
// under a single mutex. Gateway calls are made with the mutex released; a
// session epoch, bumped whenever the session ends or a new one starts,
// lets a call that was overtaken by logout or expiry drop its result.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go-academic-portal/internal/event"
	"go-academic-portal/internal/metrics"
	"go-academic-portal/internal/model"
	"go-academic-portal/internal/role"
	"go-academic-portal/internal/timer"
	"go-academic-portal/internal/tokenstore"
)

// DefaultTokenDuration applies when a login response omits the duration.
const DefaultTokenDuration = 15 * time.Second

// errNoRoles rejects a backend user that cannot hold a session: an
// authenticated user always has at least one role.
var errNoRoles = fmt.Errorf("backend user has no roles: %w", model.ErrNetwork)

// Gateway is the subset of the auth backend client the controller needs.
type Gateway interface {
	Login(ctx context.Context, email string, password string) (model.LoginResult, error)
	VerifyToken(ctx context.Context, accessToken string) (model.UserProfile, error)
	RefreshToken(ctx context.Context, refreshToken string) (model.RefreshResult, error)
}

type Controller struct {
	mu      sync.Mutex
	gateway Gateway
	store   *tokenstore.Store
	timers  *timer.Engine
	roles   *role.Selector
	bus     event.Bus
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time

	scheduler       timer.Scheduler
	permissions     role.Permissions
	defaultDuration time.Duration

	state      model.State
	loading    bool
	user       *model.UserProfile
	duration   time.Duration
	expiresAt  time.Time
	warning      bool
	refreshing   bool
	initializing bool
	epoch        uint64
}

type Option func(*Controller)

func WithScheduler(s timer.Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

func WithBus(bus event.Bus) Option {
	return func(c *Controller) {
		if bus != nil {
			c.bus = bus
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

func WithDefaultDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.defaultDuration = d
		}
	}
}

func WithPermissions(p role.Permissions) Option {
	return func(c *Controller) {
		c.permissions = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func New(gw Gateway, store *tokenstore.Store, opts ...Option) *Controller {
	c := &Controller{
		gateway:         gw,
		store:           store,
		bus:             event.Nop{},
		logger:          slog.Default(),
		now:             time.Now,
		scheduler:       timer.RealScheduler(),
		defaultDuration: DefaultTokenDuration,
		state:           model.StateUnknown,
		loading:         true,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("component", "session")
	c.duration = c.defaultDuration
	c.timers = timer.New(c.onWarning, c.onExpire,
		timer.WithScheduler(c.scheduler),
		timer.WithLogger(c.logger),
	)
	c.roles = role.NewSelector(store,
		role.WithPermissions(c.permissions),
		role.WithLogger(c.logger),
	)
	return c
}

// Init restores a persisted session. With time left on the stored token it
// verifies it; otherwise, or when verification fails, it makes exactly one
// refresh attempt and verifies the new token. Any failure clears the store
// and leaves the controller anonymous. Init only returns an error when the
// store itself cannot be written. Calls after the first, including ones made
// while the first is still restoring, are no-ops.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	if c.state != model.StateUnknown || c.initializing {
		c.mu.Unlock()
		return nil
	}

	record := c.store.Load()
	if record.Empty() {
		c.state = model.StateAnonymous
		c.loading = false
		c.mu.Unlock()
		c.logger.Debug("no stored session")
		return nil
	}

	if record.Duration > 0 {
		c.duration = record.Duration
	}
	remaining := c.store.Remaining()
	epoch := c.epoch
	c.initializing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.initializing = false
		c.mu.Unlock()
	}()

	if remaining > 0 {
		started := time.Now()
		user, err := c.gateway.VerifyToken(ctx, record.AccessToken)
		if err == nil && !user.HasRoles() {
			err = errNoRoles
		}
		c.metrics.ObserveVerify(err, started)
		if err == nil {
			c.mu.Lock()
			defer c.mu.Unlock()
			if epoch != c.epoch {
				return nil
			}
			c.establishLocked(&user, c.duration, record.ExpiresAt, remaining)
			c.publishLocked(event.TypeSessionRestored, nil)
			c.logger.Info("session restored", "user_id", user.ID, "remaining", remaining)
			return nil
		}
		c.logger.Info("stored token rejected, refreshing", "error", err)
	} else {
		c.logger.Info("stored token expired, refreshing")
	}

	return c.restoreByRefresh(ctx, record, epoch)
}

func (c *Controller) restoreByRefresh(ctx context.Context, record model.TokenRecord, epoch uint64) error {
	started := time.Now()
	refreshed, err := c.gateway.RefreshToken(ctx, record.RefreshToken)
	c.metrics.ObserveRefresh(err, started)
	if err != nil {
		return c.abandonStartup(epoch, err)
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		return nil
	}
	duration := c.refreshedDurationLocked(refreshed)
	next := rotate(record, refreshed, duration, c.now())
	if err := c.store.Save(next); err != nil {
		c.mu.Unlock()
		return c.abandonStartup(epoch, fmt.Errorf("persist refreshed session: %w", err))
	}
	c.duration = duration
	c.mu.Unlock()

	started = time.Now()
	user, err := c.gateway.VerifyToken(ctx, next.AccessToken)
	if err == nil && !user.HasRoles() {
		err = errNoRoles
	}
	c.metrics.ObserveVerify(err, started)
	if err != nil {
		return c.abandonStartup(epoch, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return nil
	}
	c.establishLocked(&user, duration, next.ExpiresAt, duration)
	c.publishLocked(event.TypeSessionRestored, nil)
	c.logger.Info("session restored after refresh", "user_id", user.ID, "duration", duration)
	return nil
}

// abandonStartup drops the stored session. Network errors end up here too:
// there is no background retry to hand them to.
func (c *Controller) abandonStartup(epoch uint64, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return nil
	}

	c.logger.Warn("stored session could not be restored", "error", cause)
	c.epoch++
	c.timers.Cancel()
	c.roles.Reset()
	c.user = nil
	c.warning = false
	c.refreshing = false
	c.state = model.StateAnonymous
	c.loading = false
	c.metrics.SessionEnded(metrics.ReasonStartupFailure)
	c.bus.Publish(event.New(event.TypeSessionExpired, "", event.ExpiredPayload{Reason: metrics.ReasonStartupFailure}))

	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear token store: %w", err)
	}
	return nil
}

// Login authenticates and starts a fresh session. A failed login leaves
// the current state untouched and returns the gateway error.
func (c *Controller) Login(ctx context.Context, email string, password string) (model.LoginResult, error) {
	started := time.Now()
	result, err := c.gateway.Login(ctx, email, password)
	if err == nil && !result.User.HasRoles() {
		err = errNoRoles
	}
	c.metrics.ObserveLogin(err, started)
	if err != nil {
		c.logger.Info("login failed", "error", err)
		return model.LoginResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	duration := result.Duration
	if duration <= 0 {
		duration = c.defaultDuration
	}

	c.epoch++
	c.timers.Cancel()
	c.roles.Reset()

	record := model.TokenRecord{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Duration:     duration,
		ExpiresAt:    c.now().Add(duration),
	}
	if err := c.store.Save(record); err != nil {
		c.endLocked(metrics.ReasonLogout, event.TypeSessionEnded)
		return model.LoginResult{}, fmt.Errorf("persist session: %w", err)
	}

	user := result.User
	c.establishLocked(&user, duration, record.ExpiresAt, duration)
	c.publishLocked(event.TypeSessionStarted, nil)
	c.logger.Info("login succeeded", "user_id", user.ID, "role", c.roles.Current(), "duration", duration)

	result.Duration = duration
	return result, nil
}

// establishLocked enters Authenticated and schedules the timer pair for
// the time remaining out of a session of length duration.
func (c *Controller) establishLocked(user *model.UserProfile, duration time.Duration, expiresAt time.Time, remaining time.Duration) {
	c.user = user.Clone()
	c.duration = duration
	c.expiresAt = expiresAt
	c.warning = false
	c.refreshing = false
	c.state = model.StateAuthenticated
	c.loading = false

	c.roles.Resolve(c.user)
	c.timers.StartWithRemaining(remaining, duration)
	c.metrics.SessionStarted()
}

// Logout ends the session, clearing the store, timers and role state.
func (c *Controller) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked(metrics.ReasonLogout, event.TypeSessionEnded)
}

// ExpireNow ends the session as if the expiry timer had fired.
func (c *Controller) ExpireNow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked(metrics.ReasonTimeout, event.TypeSessionExpired)
}

func (c *Controller) endLocked(reason string, kind event.Type) {
	wasAuthenticated := c.user != nil
	actor := ""
	if wasAuthenticated {
		actor = c.user.ID
	}

	c.epoch++
	c.timers.Cancel()
	if err := c.store.Clear(); err != nil {
		c.logger.Error("failed to clear token store", "error", err)
	}
	c.roles.Reset()
	c.user = nil
	c.warning = false
	c.refreshing = false
	c.state = model.StateAnonymous
	c.loading = false

	if !wasAuthenticated {
		return
	}

	c.metrics.SessionEnded(reason)
	c.bus.Publish(event.New(kind, actor, event.ExpiredPayload{Reason: reason}))
	c.logger.Info("session ended", "user_id", actor, "reason", reason)
}

// ContinueSession answers the expiry warning with one refresh. On success
// the timers restart with the new duration (or the current one when the
// backend omits it) and the warning clears. On failure the session expires
// and the gateway error is returned. A call while another refresh is in
// flight does nothing and returns nil.
func (c *Controller) ContinueSession(ctx context.Context) error {
	c.mu.Lock()
	if c.user == nil {
		c.mu.Unlock()
		return model.ErrUnauthenticated
	}
	if c.refreshing {
		c.mu.Unlock()
		c.logger.Debug("refresh already in flight")
		return nil
	}
	c.refreshing = true
	epoch := c.epoch
	record := c.store.Load()
	c.mu.Unlock()

	started := time.Now()
	refreshed, err := c.gateway.RefreshToken(ctx, record.RefreshToken)
	c.metrics.ObserveRefresh(err, started)

	c.mu.Lock()
	defer c.mu.Unlock()

	if epoch != c.epoch {
		// Logged out or expired while the call was pending.
		return nil
	}
	c.refreshing = false

	if err != nil {
		c.logger.Info("session refresh failed", "error", err)
		c.endLocked(metrics.ReasonRefreshFailed, event.TypeSessionExpired)
		return err
	}

	duration := c.refreshedDurationLocked(refreshed)
	next := rotate(record, refreshed, duration, c.now())
	next.CurrentRole = c.roles.Current()
	if err := c.store.Save(next); err != nil {
		c.logger.Error("failed to persist refreshed session", "error", err)
	}

	c.duration = duration
	c.expiresAt = next.ExpiresAt
	c.warning = false
	c.state = model.StateAuthenticated
	c.timers.Start(duration)

	c.publishLocked(event.TypeSessionRefreshed, nil)
	c.logger.Info("session refreshed", "user_id", c.user.ID, "duration", duration)
	return nil
}

// refreshedDurationLocked keeps the current duration when the refresh
// response has none.
func (c *Controller) refreshedDurationLocked(r model.RefreshResult) time.Duration {
	if r.Duration > 0 {
		return r.Duration
	}
	if c.duration > 0 {
		return c.duration
	}
	return c.defaultDuration
}

// rotate applies a refresh response to a stored record. A response without
// a refresh token keeps the previous one.
func rotate(prev model.TokenRecord, r model.RefreshResult, duration time.Duration, now time.Time) model.TokenRecord {
	next := prev
	next.AccessToken = r.AccessToken
	if r.RefreshToken != "" {
		next.RefreshToken = r.RefreshToken
	}
	next.Duration = duration
	next.ExpiresAt = now.Add(duration)
	return next
}

func (c *Controller) onWarning(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.timers.Current(gen) || c.user == nil || c.warning {
		return
	}
	c.warning = true
	c.state = model.StateWarningShown
	c.metrics.Warning()

	window := timer.WarningWindow(c.duration)
	c.publishLocked(event.TypeSessionWarning, event.WarningPayload{Window: window, ExpiresAt: c.expiresAt})
	c.logger.Info("session expiring soon", "user_id", c.user.ID, "window", window)
}

func (c *Controller) onExpire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.timers.Current(gen) || c.user == nil {
		return
	}
	c.endLocked(metrics.ReasonTimeout, event.TypeSessionExpired)
}

// SwitchRole activates a role the user holds, matched by id or by name
// ignoring case.
func (c *Controller) SwitchRole(identifier string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return false
	}
	from := c.roles.Resolve(c.user)
	if !c.roles.Switch(c.user, identifier) {
		return false
	}
	to := c.roles.Current()
	if !strings.EqualFold(from, to) {
		c.publishLocked(event.TypeRoleSwitched, event.RolePayload{From: from, To: to})
	}
	return true
}

func (c *Controller) HasRole(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roles.HasRole(c.user, name)
}

func (c *Controller) HasPermission(permission string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return false
	}
	return c.roles.HasPermission(c.user, permission)
}

// IsAdmin reports whether the active role is an administrator role.
func (c *Controller) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return false
	}
	return role.IsAdminRole(c.roles.Resolve(c.user))
}

// Authorize guards a protected view. With required roles, the user must
// hold at least one of them; the active role is not considered.
func (c *Controller) Authorize(requiredRoles ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.user == nil {
		return model.ErrUnauthenticated
	}
	if len(requiredRoles) == 0 {
		return nil
	}
	for _, name := range requiredRoles {
		if c.roles.HasRole(c.user, name) {
			return nil
		}
	}
	return model.ErrForbidden
}

func (c *Controller) publishLocked(kind event.Type, payload any) {
	actor := ""
	if c.user != nil {
		actor = c.user.ID
	}
	c.bus.Publish(event.New(kind, actor, payload))
}

// Snapshot returns a consistent copy of the read state.
func (c *Controller) Snapshot() model.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return model.Session{
		User:            c.user.Clone(),
		IsAuthenticated: c.user != nil,
		Loading:         c.loading,
		CurrentRole:     c.currentRoleLocked(),
		TokenDuration:   c.duration,
		WarningActive:   c.warning,
		State:           c.state,
	}
}

func (c *Controller) currentRoleLocked() string {
	if c.user == nil {
		return ""
	}
	return c.roles.Resolve(c.user)
}

func (c *Controller) User() *model.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user.Clone()
}

func (c *Controller) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user != nil
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

func (c *Controller) CurrentRole() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentRoleLocked()
}

func (c *Controller) WarningActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warning
}

func (c *Controller) State() model.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) TokenDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// WarningWindow is the countdown length for the current token duration.
func (c *Controller) WarningWindow() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return timer.WarningWindow(c.duration)
}

func (c *Controller) WarningWindowMs() int64 {
	return c.WarningWindow().Milliseconds()
}

// RemainingWarningSeconds is the countdown value while the warning is
// shown, in whole seconds and never above the window. Zero otherwise.
func (c *Controller) RemainingWarningSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.warning {
		return 0
	}
	left := c.expiresAt.Sub(c.now())
	if left <= 0 {
		return 0
	}
	if window := timer.WarningWindow(c.duration); left > window {
		left = window
	}
	return int(left / time.Second)
}

// Close stops the timers. The stored session is kept for the next run.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.timers.Teardown()
}
