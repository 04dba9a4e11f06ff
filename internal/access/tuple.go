package access

import "sort"

// ActionHasAccess is the gating action of a page or tab. Tab buckets that
// never mention it resolve to an explicit deny.
const ActionHasAccess = "hasAccess"

// PageGrant is the nested permission shape exchanged with clients:
// page-level actions under pagePermissions, tab-level actions under tabs.
type PageGrant struct {
	PagePermissions map[string]bool            `json:"pagePermissions"`
	Tabs            map[string]map[string]bool `json:"tabs"`
}

// Tuple is one flattened permission row: (page, tab|nil, action) plus the
// allowed flag. A nil tab marks a page-level action.
type Tuple struct {
	Page    string  `json:"page"`
	Tab     *string `json:"tab"`
	Action  string  `json:"action"`
	Allowed bool    `json:"allowed"`
}

// Flatten turns a nested page→tab→action tree into storage tuples.
// Page-level entries get a nil tab. Output order is deterministic.
func Flatten(pages map[string]PageGrant) []Tuple {
	out := make([]Tuple, 0, len(pages))
	for _, page := range sortedKeys(pages) {
		grant := pages[page]
		for _, action := range sortedKeys(grant.PagePermissions) {
			out = append(out, Tuple{Page: page, Action: action, Allowed: grant.PagePermissions[action]})
		}
		for _, tab := range sortedKeys(grant.Tabs) {
			actions := grant.Tabs[tab]
			t := tab
			for _, action := range sortedKeys(actions) {
				out = append(out, Tuple{Page: page, Tab: &t, Action: action, Allowed: actions[action]})
			}
		}
	}
	return out
}

// Unflatten groups tuples back into the nested tree. Every tab bucket that
// lacks an explicit hasAccess action gets hasAccess:false; other absent
// actions stay absent.
func Unflatten(tuples []Tuple) map[string]PageGrant {
	pages := map[string]PageGrant{}
	for _, t := range tuples {
		grant, ok := pages[t.Page]
		if !ok {
			grant = PageGrant{PagePermissions: map[string]bool{}, Tabs: map[string]map[string]bool{}}
		}
		if t.Tab == nil {
			grant.PagePermissions[t.Action] = t.Allowed
		} else {
			if grant.Tabs[*t.Tab] == nil {
				grant.Tabs[*t.Tab] = map[string]bool{}
			}
			grant.Tabs[*t.Tab][t.Action] = t.Allowed
		}
		pages[t.Page] = grant
	}
	for _, grant := range pages {
		for _, actions := range grant.Tabs {
			if _, ok := actions[ActionHasAccess]; !ok {
				actions[ActionHasAccess] = false
			}
		}
	}
	return pages
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
