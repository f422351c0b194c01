package domain

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/renewly/internal/calendar"
)

const (
	TokenName       = "{name}"
	TokenTenantName = "{tenant_name}"
	TokenDate       = "{date}"
	TokenExpiryText = "{expiry_text}"

	defaultFirstName = "Member"
)

var defaultTemplates = map[calendar.Tier]string{
	calendar.Tier1:  "Hi {name}, this is {tenant_name}. Your membership {expiry_text}. Renew now to continue your fitness journey!",
	calendar.Tier3:  "Hi {name}, this is {tenant_name}. Your membership will expire in 3 days on {date}. Renew soon to avoid interruption!",
	calendar.Tier7:  "Hi {name}, this is {tenant_name}. Your membership will expire in 7 days on {date}. Don't miss out on your fitness goals!",
	calendar.Tier30: "Hi {name}, this is {tenant_name}. Your membership will expire in 30 days on {date}. Plan your renewal today!",
}

// Member is the slice of a classified member a template can reference.
type Member struct {
	CustomerName  string
	EndDate       time.Time
	DaysRemaining int
}

// Engine maps tiers to templates and renders them by literal substitution.
// It is safe for concurrent use.
type Engine struct {
	mu        sync.RWMutex
	templates map[calendar.Tier]string
}

// NewEngine returns an engine loaded with the default templates.
func NewEngine() *Engine {
	templates := make(map[calendar.Tier]string, len(defaultTemplates))
	for tier, body := range defaultTemplates {
		templates[tier] = body
	}
	return &Engine{templates: templates}
}

// DefaultTemplate returns the built-in template for tier.
func DefaultTemplate(tier calendar.Tier) (string, bool) {
	body, ok := defaultTemplates[tier]
	return body, ok
}

// RequiredTokens lists the placeholders a template for tier must contain.
func RequiredTokens(tier calendar.Tier) []string {
	if tier == calendar.Tier1 {
		return []string{TokenName, TokenTenantName, TokenExpiryText}
	}
	return []string{TokenName, TokenTenantName, TokenDate}
}

// ValidateTemplate checks body against the required tokens for tier without installing it.
func ValidateTemplate(tier calendar.Tier, body string) error {
	if !tier.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownTier, int(tier))
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: template is empty", ErrTemplateValidation)
	}
	var missing []string
	for _, token := range RequiredTokens(tier) {
		if !strings.Contains(body, token) {
			missing = append(missing, token)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: tier %d missing %s", ErrTemplateValidation, int(tier), strings.Join(missing, ", "))
	}
	return nil
}

// Render fills the template for tier. An unknown tier renders with the tier-1 template.
func (e *Engine) Render(tier calendar.Tier, member Member, tenantName string) string {
	e.mu.RLock()
	body, ok := e.templates[tier]
	if !ok {
		body = e.templates[calendar.Tier1]
	}
	e.mu.RUnlock()

	return fill(body, FirstName(member.CustomerName), tenantName,
		calendar.FormatDisplayDate(member.EndDate),
		calendar.ExpiryPhrase(member.DaysRemaining),
	)
}

// SetTemplate installs body for tier. A rejected template leaves the current one active.
func (e *Engine) SetTemplate(tier calendar.Tier, body string) error {
	if err := ValidateTemplate(tier, body); err != nil {
		return err
	}
	e.mu.Lock()
	e.templates[tier] = body
	e.mu.Unlock()
	return nil
}

// Reset restores the default template for tier.
func (e *Engine) Reset(tier calendar.Tier) error {
	body, ok := DefaultTemplate(tier)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTier, int(tier))
	}
	e.mu.Lock()
	e.templates[tier] = body
	e.mu.Unlock()
	return nil
}

func (e *Engine) Template(tier calendar.Tier) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	body, ok := e.templates[tier]
	return body, ok
}

// Templates returns a copy of every installed template.
func (e *Engine) Templates() map[calendar.Tier]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[calendar.Tier]string, len(e.templates))
	for tier, body := range e.templates {
		out[tier] = body
	}
	return out
}

// Preview renders tier with sample placeholders in place of member data.
func (e *Engine) Preview(tier calendar.Tier, tenantName string) (string, error) {
	body, ok := e.Template(tier)
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownTier, int(tier))
	}
	if strings.TrimSpace(tenantName) == "" {
		tenantName = "[Tenant Name]"
	}
	return fill(body, "[Customer Name]", tenantName, "[DD-MM-YYYY]", "[Expiry Text]"), nil
}

// FirstName returns the first whitespace-delimited token of name, or "Member".
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return defaultFirstName
	}
	return fields[0]
}

func fill(body, name, tenantName, date, expiryText string) string {
	return strings.NewReplacer(
		TokenName, name,
		TokenTenantName, tenantName,
		TokenDate, date,
		TokenExpiryText, expiryText,
	).Replace(body)
}
