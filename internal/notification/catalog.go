package notification

import (
	"math/rand"
	"sync"
	"time"

	"devconsole/internal/domain"
)

// Template is a canned alert without a timestamp.
type Template struct {
	Type     string
	Severity domain.Severity
	Message  string
}

// DefaultCatalog is the static set of simulated alerts.
var DefaultCatalog = []Template{
	{Type: "defi-alert", Severity: domain.SeverityInfo, Message: "Liquidity pool ratio changed: ETH/USDC now at 70/30"},
	{Type: "price-alert", Severity: domain.SeverityWarning, Message: "ETH price down 5% in last hour"},
	{Type: "security-alert", Severity: domain.SeverityCritical, Message: "Unusual transaction volume detected in lending pool"},
	{Type: "gas-alert", Severity: domain.SeverityInfo, Message: "Gas prices rising. Consider delaying non-critical transactions"},
	{Type: "cross-chain", Severity: domain.SeverityInfo, Message: "Cross-chain transaction confirmed on destination chain"},
}

// Selector picks the next alert to send.
type Selector interface {
	Next() domain.Notification
}

// RandomSelector draws uniformly from a catalog.
type RandomSelector struct {
	mu      sync.Mutex
	rng     *rand.Rand
	catalog []Template
	now     func() time.Time
}

func NewRandomSelector(catalog []Template, seed int64) *RandomSelector {
	if len(catalog) == 0 {
		catalog = DefaultCatalog
	}
	return &RandomSelector{
		rng:     rand.New(rand.NewSource(seed)),
		catalog: catalog,
		now:     time.Now,
	}
}

func (s *RandomSelector) Next() domain.Notification {
	s.mu.Lock()
	tmpl := s.catalog[s.rng.Intn(len(s.catalog))]
	s.mu.Unlock()
	return tmpl.At(s.now())
}

// At stamps the template.
func (t Template) At(ts time.Time) domain.Notification {
	return domain.Notification{
		Type:      t.Type,
		Severity:  t.Severity,
		Message:   t.Message,
		Timestamp: ts.UTC(),
	}
}

// ConnectionAck is the first event sent on every channel.
func ConnectionAck(ts time.Time) domain.Notification {
	return domain.Notification{
		Type:      domain.NotificationTypeConnection,
		Message:   "Connected to MetaMask DevOps Snap WebSocket Server",
		Timestamp: ts.UTC(),
	}
}
