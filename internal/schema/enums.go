package schema

import (
	"fmt"
	"strings"
)

// Engine identifies a supported database product
type Engine string

const (
	EngineMySQL     Engine = "mysql"
	EnginePostgres  Engine = "postgres"
	EngineSQLite    Engine = "sqlite"
	EngineSQLServer Engine = "sqlserver"
)

// ParseEngine accepts the usual aliases for each engine
func ParseEngine(s string) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return EngineMySQL, nil
	case "postgres", "postgresql", "pgsql", "pg":
		return EnginePostgres, nil
	case "sqlite", "sqlite3":
		return EngineSQLite, nil
	case "sqlserver", "mssql":
		return EngineSQLServer, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedEngine, s)
}

// SemanticType is the engine-neutral column category
type SemanticType int

const (
	TypeString SemanticType = iota
	TypeText
	TypeInteger
	TypeBigInteger
	TypeDecimal
	TypeFloat
	TypeDouble
	TypeBoolean
	TypeDate
	TypeDateTime
	TypeTime
	TypeYear
	TypeJSON
	TypeEnum
	TypeUUID
	TypeBinary
)

var semanticTypeNames = [...]string{
	TypeString:     "string",
	TypeText:       "text",
	TypeInteger:    "integer",
	TypeBigInteger: "bigInteger",
	TypeDecimal:    "decimal",
	TypeFloat:      "float",
	TypeDouble:     "double",
	TypeBoolean:    "boolean",
	TypeDate:       "date",
	TypeDateTime:   "dateTime",
	TypeTime:       "time",
	TypeYear:       "year",
	TypeJSON:       "json",
	TypeEnum:       "enum",
	TypeUUID:       "uuid",
	TypeBinary:     "binary",
}

func (t SemanticType) String() string {
	if t < 0 || int(t) >= len(semanticTypeNames) {
		return fmt.Sprintf("SemanticType(%d)", int(t))
	}
	return semanticTypeNames[t]
}

func (t SemanticType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *SemanticType) UnmarshalText(b []byte) error {
	for i, name := range semanticTypeNames {
		if name == string(b) {
			*t = SemanticType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown semantic type %q", b)
}

// IsDateTime reports whether the type stores a full timestamp
func (t SemanticType) IsDateTime() bool {
	return t == TypeDateTime
}

// IsNumeric reports whether the type is an integer or fractional number
func (t SemanticType) IsNumeric() bool {
	switch t {
	case TypeInteger, TypeBigInteger, TypeDecimal, TypeFloat, TypeDouble:
		return true
	}
	return false
}

// ReferentialAction is the ON DELETE / ON UPDATE behavior of a foreign key
type ReferentialAction int

const (
	Restrict ReferentialAction = iota
	Cascade
	SetNull
	NoAction
)

var referentialActionNames = [...]string{
	Restrict: "RESTRICT",
	Cascade:  "CASCADE",
	SetNull:  "SET NULL",
	NoAction: "NO ACTION",
}

func (a ReferentialAction) String() string {
	if a < 0 || int(a) >= len(referentialActionNames) {
		return fmt.Sprintf("ReferentialAction(%d)", int(a))
	}
	return referentialActionNames[a]
}

func (a ReferentialAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *ReferentialAction) UnmarshalText(b []byte) error {
	*a = ParseReferentialAction(string(b))
	return nil
}

// ParseReferentialAction translates catalog spellings ("CASCADE", "set null",
// "SET_NULL", "NO ACTION") into a ReferentialAction. Unknown or empty values,
// including SET DEFAULT, fall back to Restrict.
func ParseReferentialAction(raw string) ReferentialAction {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " ")
	switch s {
	case "CASCADE":
		return Cascade
	case "SET NULL":
		return SetNull
	case "NO ACTION":
		return NoAction
	default:
		return Restrict
	}
}

// ConstraintKind classifies a table constraint
type ConstraintKind int

const (
	ConstraintPrimaryKey ConstraintKind = iota
	ConstraintForeignKey
	ConstraintUnique
	ConstraintCheck
)

var constraintKindNames = [...]string{
	ConstraintPrimaryKey: "PRIMARY KEY",
	ConstraintForeignKey: "FOREIGN KEY",
	ConstraintUnique:     "UNIQUE",
	ConstraintCheck:      "CHECK",
}

func (k ConstraintKind) String() string {
	if k < 0 || int(k) >= len(constraintKindNames) {
		return fmt.Sprintf("ConstraintKind(%d)", int(k))
	}
	return constraintKindNames[k]
}

func (k ConstraintKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseConstraintKind reads catalog spellings such as "PRIMARY KEY", "p",
// "FOREIGN_KEY_CONSTRAINT" or "UNIQUE_CONSTRAINT".
func ParseConstraintKind(raw string) (ConstraintKind, bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimSuffix(strings.ReplaceAll(s, "_", " "), " CONSTRAINT")
	switch s {
	case "PRIMARY KEY", "P", "PK":
		return ConstraintPrimaryKey, true
	case "FOREIGN KEY", "F":
		return ConstraintForeignKey, true
	case "UNIQUE", "U", "UQ":
		return ConstraintUnique, true
	case "CHECK", "C":
		return ConstraintCheck, true
	}
	return 0, false
}

// RelationKind is the variant tag of a Relationship. The declaration order
// is the order relationships of one owner are emitted in.
type RelationKind int

const (
	BelongsTo RelationKind = iota
	HasOne
	HasMany
	BelongsToMany
	MorphTo
	MorphOne
	MorphMany
)

var relationKindNames = [...]string{
	BelongsTo:     "belongsTo",
	HasOne:        "hasOne",
	HasMany:       "hasMany",
	BelongsToMany: "belongsToMany",
	MorphTo:       "morphTo",
	MorphOne:      "morphOne",
	MorphMany:     "morphMany",
}

func (k RelationKind) String() string {
	if k < 0 || int(k) >= len(relationKindNames) {
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
	return relationKindNames[k]
}

func (k RelationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
