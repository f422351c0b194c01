package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	batchdomain "github.com/smallbiznis/renewly/internal/batch/domain"
	"github.com/smallbiznis/renewly/internal/calendar"
	messagedomain "github.com/smallbiznis/renewly/internal/message/domain"
)

// computeRemaining attaches days remaining against the run's single reference date.
// The first malformed record fails the whole run.
func computeRemaining(members []MemberRecord, reference time.Time) ([]remainingMember, error) {
	out := make([]remainingMember, 0, len(members))
	for i, m := range members {
		if err := checkRecord(m); err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrInputContract, i, err)
		}
		out = append(out, remainingMember{
			MemberRecord:  m,
			DaysRemaining: calendar.DaysRemaining(m.EndDate, reference),
		})
	}
	return out, nil
}

var (
	errEmptyName    = errors.New("customer name is empty")
	errEmptyPhone   = errors.New("phone number is empty")
	errMissingDates = errors.New("subscription dates are required")
	errStartsLate   = errors.New("subscription starts after it ends")
)

func checkRecord(m MemberRecord) error {
	switch {
	case strings.TrimSpace(m.CustomerName) == "":
		return errEmptyName
	case strings.TrimSpace(m.PhoneNumber) == "":
		return errEmptyPhone
	case m.StartDate.IsZero() || m.EndDate.IsZero():
		return errMissingDates
	case calendar.DaysRemaining(m.EndDate, m.StartDate) < 0:
		return errStartsLate
	default:
		return nil
	}
}

// classifyAndFilter tiers each member and drops those past the 30 day horizon.
// Counts always carry every tier, zero when empty.
func classifyAndFilter(members []remainingMember) ([]ClassifiedMember, calendar.TierCounts, int) {
	counts := calendar.NewTierCounts()
	out := make([]ClassifiedMember, 0, len(members))
	excluded := 0
	for _, m := range members {
		tier := calendar.ClassifyTier(m.DaysRemaining)
		if tier == calendar.TierExcluded {
			excluded++
			continue
		}
		counts[tier]++
		out = append(out, ClassifiedMember{
			MemberRecord:  m.MemberRecord,
			DaysRemaining: m.DaysRemaining,
			Tier:          tier,
		})
	}
	return out, counts, excluded
}

// generateMessages renders one message per classified member, in input order.
func generateMessages(members []ClassifiedMember, engine *messagedomain.Engine, tenantName string) ([]batchdomain.OutboundMessage, error) {
	out := make([]batchdomain.OutboundMessage, 0, len(members))
	for i, m := range members {
		if !m.Tier.Valid() {
			return nil, fmt.Errorf("%w: row %d has tier %d", messagedomain.ErrUnknownTier, i, int(m.Tier))
		}
		text := engine.Render(m.Tier, messagedomain.Member{
			CustomerName:  m.CustomerName,
			EndDate:       m.EndDate,
			DaysRemaining: m.DaysRemaining,
		}, tenantName)
		out = append(out, batchdomain.OutboundMessage{
			CustomerName:  m.CustomerName,
			PhoneNumber:   m.PhoneNumber,
			EndDate:       calendar.CivilDate(m.EndDate),
			DaysRemaining: m.DaysRemaining,
			Tier:          m.Tier,
			MessageText:   text,
		})
	}
	return out, nil
}
