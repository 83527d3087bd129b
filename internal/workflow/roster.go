package workflow

import "strings"

// Member is one roster entry. UserID is nil when the email matched no account
// at the time the roster was built.
type Member struct {
	Email     string  `json:"email"`
	UserID    *string `json:"user_id"`
	IsPrimary bool    `json:"is_primary"`
}

// LookupFunc returns the account id registered for an email, or nil.
type LookupFunc func(email string) *string

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// BuildRoster rebuilds a roster from the submitted email list. The submitter is
// always the first and only primary entry; blank, duplicate and submitter
// emails in the input are dropped.
func BuildRoster(submitter Identity, emails []string, lookup LookupFunc) []Member {
	primaryEmail := NormalizeEmail(submitter.Email)
	userID := submitter.UserID

	roster := []Member{{Email: primaryEmail, UserID: &userID, IsPrimary: true}}
	seen := map[string]bool{primaryEmail: true}

	for _, raw := range emails {
		email := NormalizeEmail(raw)
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true

		var id *string
		if lookup != nil {
			id = lookup(email)
		}
		roster = append(roster, Member{Email: email, UserID: id})
	}
	return roster
}

// RemoveMember drops email from both the roster and the raw email list.
// The primary entry is never removed.
func RemoveMember(roster []Member, memberEmails []string, email string) ([]Member, []string) {
	email = NormalizeEmail(email)

	kept := make([]Member, 0, len(roster))
	for _, m := range roster {
		if m.Email == email && !m.IsPrimary {
			continue
		}
		kept = append(kept, m)
	}

	keptEmails := make([]string, 0, len(memberEmails))
	for _, e := range memberEmails {
		if NormalizeEmail(e) == email {
			continue
		}
		keptEmails = append(keptEmails, e)
	}
	return kept, keptEmails
}

// InterestedParties is the notification recipient list: roster emails, the raw
// submitted emails and the submitter, de-duplicated in that order.
func InterestedParties(roster []Member, memberEmails []string, submitterEmail string) []string {
	var out []string
	seen := make(map[string]bool)

	add := func(e string) {
		e = NormalizeEmail(e)
		if e == "" || seen[e] {
			return
		}
		seen[e] = true
		out = append(out, e)
	}

	for _, m := range roster {
		add(m.Email)
	}
	for _, e := range memberEmails {
		add(e)
	}
	add(submitterEmail)
	return out
}
