package rbac

var policy = map[Operation][]Level{
	OpManageUsers:     {LevelAdmin},
	OpManageSuppliers: {LevelAdmin},
	OpViewReports:     {LevelAdmin},
	OpGenerateReports: {LevelAdmin},
	OpViewInventory:   {LevelAdmin, LevelResponsible, LevelChief},
	OpRecordMovements: {LevelAdmin, LevelResponsible, LevelChief},
	OpCreateItems:     {LevelAdmin, LevelResponsible, LevelChief},
}

// Allowed is the single authorisation decision for every gated route.
// Unknown operations are denied.
func Allowed(level Level, op Operation) bool {
	for _, l := range policy[op] {
		if l == level {
			return true
		}
	}
	return false
}

// SafeDefault is where a user lands after login or after being denied.
func SafeDefault(level Level) string {
	if level == LevelAdmin {
		return "/users"
	}
	return "/inventory/dashboard"
}
