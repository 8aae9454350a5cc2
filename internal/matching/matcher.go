// Package matching decides which users are shown to each other.
package matching

import "meetinclick/backend/internal/models"

// SharesTopic reports whether a and b have at least one tag in common.
// Comparison is exact and case-sensitive.
func SharesTopic(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	for _, t := range b {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// IsCandidate reports whether v may be suggested to u: a different user with
// the same main category and an overlapping topic set.
func IsCandidate(u, v *models.User) bool {
	if u == nil || v == nil || u.ID == v.ID {
		return false
	}
	if !u.HasCompletedOnboarding() || !v.HasCompletedOnboarding() {
		return false
	}
	if *u.MainCategory != *v.MainCategory {
		return false
	}
	return SharesTopic(u.ConversationTopics, v.ConversationTopics)
}

// FilterCandidates keeps the users in others that are candidates for u, in
// input order. The result is never nil.
func FilterCandidates(u *models.User, others []models.User) []models.User {
	out := make([]models.User, 0)
	if u == nil || !u.HasCompletedOnboarding() {
		return out
	}
	for i := range others {
		if IsCandidate(u, &others[i]) {
			out = append(out, others[i])
		}
	}
	return out
}
