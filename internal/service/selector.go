// Copyright IntroChat and each contributor.
// SPDX-License-Identifier: MIT

package service

import (
	"time"

	"github.com/introchat/intro-booking-service/internal/domain/models"
	"github.com/introchat/intro-booking-service/pkg/utils"
)

// PartnerSelector picks the next intro partner from a roster snapshot.
// Selection is strict fair rotation: lowest weight wins, ties broken by
// lexicographic email so an unchanged roster always yields the same pick.
type PartnerSelector struct {
	cadenceBusinessDays int
	allowRepeatPartners bool
}

// NewPartnerSelector creates a new PartnerSelector.
func NewPartnerSelector(cadenceBusinessDays int, allowRepeatPartners bool) *PartnerSelector {
	return &PartnerSelector{
		cadenceBusinessDays: cadenceBusinessDays,
		allowRepeatPartners: allowRepeatPartners,
	}
}

// Select returns the partner for one unit. The used set holds partners
// already paired this run. When every eligible member has been used and
// repeats are allowed, a second pass ignores the used set so a long run over
// a small roster still books rather than starving.
func (s *PartnerSelector) Select(requesterEmail string, roster []*models.Member, used map[string]bool, notBefore time.Time) (*models.Member, bool) {
	requesterEmail = models.NormalizeEmail(requesterEmail)

	if partner := s.pick(requesterEmail, roster, used, notBefore); partner != nil {
		return partner, true
	}
	if s.allowRepeatPartners && len(used) > 0 {
		if partner := s.pick(requesterEmail, roster, nil, notBefore); partner != nil {
			return partner, true
		}
	}
	return nil, false
}

func (s *PartnerSelector) pick(requesterEmail string, roster []*models.Member, used map[string]bool, notBefore time.Time) *models.Member {
	var best *models.Member
	for _, member := range roster {
		email := models.NormalizeEmail(member.Email)
		if email == requesterEmail {
			continue
		}
		if used[email] {
			continue
		}
		if !s.cadenceSatisfied(member, notBefore) {
			continue
		}
		if best == nil || member.Weight < best.Weight ||
			(member.Weight == best.Weight && email < models.NormalizeEmail(best.Email)) {
			best = member
		}
	}
	return best
}

// cadenceSatisfied reports whether enough business days have passed since the
// member's last booking. Members never booked are always eligible. The check
// runs against notBefore, the earliest day a slot can land on; a member may be
// skipped even though the slot eventually resolves to a later, eligible day,
// but is never paired sooner than the cadence allows.
func (s *PartnerSelector) cadenceSatisfied(member *models.Member, notBefore time.Time) bool {
	if member.LastBookedDate == nil {
		return true
	}
	loc := notBefore.Location()
	lastDay := utils.StartOfDay(*member.LastBookedDate, loc)
	eligibleFrom := utils.AddBusinessDays(lastDay, s.cadenceBusinessDays)
	return !eligibleFrom.After(utils.StartOfDay(notBefore, loc))
}
