package policy

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ============================================================================
// SIGNED RULE BUNDLES
// ============================================================================

// SignedRuleBundle is a rule-set snapshot with an ed25519 signature over
// its checksum, for distributing policy to remote engines.
type SignedRuleBundle struct {
	Rules     []*Rule        `json:"rules"`
	Checksum  string         `json:"checksum"`
	Signature string         `json:"signature"` // base64
	Meta      map[string]any `json:"meta,omitempty"`
}

// RulesChecksum returns a deterministic hash of a rule set.
func RulesChecksum(rules []*Rule) (string, error) {
	data, err := json.Marshal(rules)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// SignRules builds a bundle signed with the private key.
func SignRules(priv ed25519.PrivateKey, rules []*Rule) (*SignedRuleBundle, error) {
	sum, err := RulesChecksum(rules)
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(priv, []byte(sum))
	return &SignedRuleBundle{
		Rules:     rules,
		Checksum:  sum,
		Signature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// VerifyBundle checks that the bundle checksum matches its rules and that
// the signature matches the checksum under the public key.
func VerifyBundle(pub ed25519.PublicKey, b *SignedRuleBundle) (bool, error) {
	sum, err := RulesChecksum(b.Rules)
	if err != nil {
		return false, err
	}
	if sum != b.Checksum {
		return false, fmt.Errorf("bundle checksum mismatch")
	}
	sig, err := base64.StdEncoding.DecodeString(b.Signature)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, []byte(sum), sig), nil
}

// ============================================================================
// BUNDLE DISTRIBUTION
// ============================================================================

type BundleSubscriber interface {
	OnBundle(ctx context.Context, pub ed25519.PublicKey, bundle *SignedRuleBundle) error
}

type BundleSubscriberFunc func(ctx context.Context, pub ed25519.PublicKey, bundle *SignedRuleBundle) error

func (f BundleSubscriberFunc) OnBundle(ctx context.Context, pub ed25519.PublicKey, bundle *SignedRuleBundle) error {
	return f(ctx, pub, bundle)
}

// BundleDistributor signs rule-set snapshots from a store and pushes them
// to subscribers whenever a change is notified. Signing keys rotate on a
// ticker.
type BundleDistributor struct {
	store            RuleStore
	pub              ed25519.PublicKey
	priv             ed25519.PrivateKey
	rotationInterval time.Duration
	notifyCh         chan struct{}
	stopCh           chan struct{}
	subscribers      []BundleSubscriber
	logger           Logger
	mu               sync.RWMutex
	started          bool
	wg               sync.WaitGroup
}

type BundleDistributorOption func(*BundleDistributor)

func WithBundleSigningKey(priv ed25519.PrivateKey) BundleDistributorOption {
	return func(d *BundleDistributor) {
		if len(priv) == ed25519.PrivateKeySize {
			d.priv = append(ed25519.PrivateKey{}, priv...)
			d.pub = priv.Public().(ed25519.PublicKey)
		}
	}
}

func WithBundleRotationInterval(interval time.Duration) BundleDistributorOption {
	return func(d *BundleDistributor) {
		if interval > 0 {
			d.rotationInterval = interval
		}
	}
}

func WithBundleLogger(l Logger) BundleDistributorOption {
	return func(d *BundleDistributor) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewBundleDistributor(store RuleStore, opts ...BundleDistributorOption) (*BundleDistributor, error) {
	if store == nil {
		return nil, fmt.Errorf("policy: rule store is required")
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("policy: generate signing key: %w", err)
	}
	dist := &BundleDistributor{
		store:            store,
		priv:             priv,
		pub:              pub,
		rotationInterval: 24 * time.Hour,
		notifyCh:         make(chan struct{}, 1),
		stopCh:           make(chan struct{}),
		logger:           NewPhusluLogger(),
	}
	for _, opt := range opts {
		opt(dist)
	}
	return dist, nil
}

func (d *BundleDistributor) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.rotationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stopCh:
				return
			case <-d.notifyCh:
				if err := d.distribute(ctx); err != nil {
					d.logger.Error("bundle distribution failed", "error", err.Error())
				}
			case <-ticker.C:
				if err := d.RotateSigningKey(); err != nil {
					d.logger.Error("bundle key rotation failed", "error", err.Error())
				}
			}
		}
	}()
}

func (d *BundleDistributor) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	d.mu.Unlock()

	close(d.stopCh)
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// NotifyChange queues a distribution round; coalesces while one is pending.
func (d *BundleDistributor) NotifyChange() {
	select {
	case d.notifyCh <- struct{}{}:
	default:
	}
}

func (d *BundleDistributor) RegisterSubscriber(sub BundleSubscriber) {
	if sub == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers = append(d.subscribers, sub)
}

func (d *BundleDistributor) RotateSigningKey() error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.priv = priv
	d.pub = pub
	d.mu.Unlock()
	return nil
}

func (d *BundleDistributor) CurrentPublicKey() ed25519.PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append(ed25519.PublicKey(nil), d.pub...)
}

// Distribute signs the store's current rule set and pushes it to every
// subscriber. It is exported so hosts can distribute synchronously instead
// of through NotifyChange.
func (d *BundleDistributor) Distribute(ctx context.Context) error {
	return d.distribute(ctx)
}

func (d *BundleDistributor) distribute(ctx context.Context) error {
	rules, err := d.store.ListRules(ctx)
	if err != nil {
		return err
	}
	d.mu.RLock()
	priv := d.priv
	d.mu.RUnlock()
	bundle, err := SignRules(priv, rules)
	if err != nil {
		return err
	}
	if bundle.Meta == nil {
		bundle.Meta = map[string]any{}
	}
	bundle.Meta["generated_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	bundle.Meta["signing_key"] = base64.StdEncoding.EncodeToString(d.CurrentPublicKey())

	d.mu.RLock()
	subs := append([]BundleSubscriber(nil), d.subscribers...)
	d.mu.RUnlock()
	for _, sub := range subs {
		if err := sub.OnBundle(ctx, d.CurrentPublicKey(), bundle); err != nil {
			d.logger.Error("bundle subscriber error", "error", err.Error())
		}
	}
	return nil
}
