package rbac

// Level is the access level stored on a user profile.
type Level int

const (
	// LevelAdmin manages users, suppliers and reports.
	LevelAdmin Level = 1
	// LevelResponsible records movements on behalf of an area.
	LevelResponsible Level = 2
	// LevelChief runs the warehouse day to day.
	LevelChief Level = 3
)

// DefaultLevel is assigned to users whose profile row is missing.
const DefaultLevel = LevelChief

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	return l == LevelAdmin || l == LevelResponsible || l == LevelChief
}

// Label returns the display name of the level.
func (l Level) Label() string {
	switch l {
	case LevelAdmin:
		return "Administrador"
	case LevelResponsible:
		return "Responsable"
	case LevelChief:
		return "Jefe de Almacén"
	default:
		return "Desconocido"
	}
}

// Levels lists every level in display order.
func Levels() []Level {
	return []Level{LevelAdmin, LevelResponsible, LevelChief}
}

// LevelForRole maps the login role buttons to a level.
func LevelForRole(role string) (Level, bool) {
	switch role {
	case "admin":
		return LevelAdmin, true
	case "responsable":
		return LevelResponsible, true
	case "jefe":
		return LevelChief, true
	default:
		return 0, false
	}
}

// Operation names a gated capability.
type Operation string

const (
	OpManageUsers     Operation = "users.manage"
	OpManageSuppliers Operation = "suppliers.manage"
	OpViewReports     Operation = "reports.view"
	OpGenerateReports Operation = "reports.generate"
	OpViewInventory   Operation = "inventory.view"
	OpRecordMovements Operation = "movements.record"
	OpCreateItems     Operation = "items.create"
)
