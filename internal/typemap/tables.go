package typemap

import (
	"maps"
	"strings"

	"github.com/tordrt/relschema/internal/schema"
)

type engineTable struct {
	// special is keyed by the first token including its parameters
	special  map[string]schema.SemanticType
	names    map[string]schema.SemanticType
	affinity func(base string) (schema.SemanticType, bool)
}

var commonNames = map[string]schema.SemanticType{
	"char":              schema.TypeString,
	"character":         schema.TypeString,
	"varchar":           schema.TypeString,
	"character varying": schema.TypeString,
	"nchar":             schema.TypeString,
	"nvarchar":          schema.TypeString,
	"varchar2":          schema.TypeString,

	"text":       schema.TypeText,
	"tinytext":   schema.TypeText,
	"mediumtext": schema.TypeText,
	"longtext":   schema.TypeText,
	"clob":       schema.TypeText,
	"ntext":      schema.TypeText,

	"int":         schema.TypeInteger,
	"integer":     schema.TypeInteger,
	"smallint":    schema.TypeInteger,
	"tinyint":     schema.TypeInteger,
	"mediumint":   schema.TypeInteger,
	"int2":        schema.TypeInteger,
	"int4":        schema.TypeInteger,
	"serial":      schema.TypeInteger,
	"serial4":     schema.TypeInteger,
	"smallserial": schema.TypeInteger,

	"bigint":    schema.TypeBigInteger,
	"int8":      schema.TypeBigInteger,
	"bigserial": schema.TypeBigInteger,
	"serial8":   schema.TypeBigInteger,

	"decimal": schema.TypeDecimal,
	"dec":     schema.TypeDecimal,
	"numeric": schema.TypeDecimal,
	"fixed":   schema.TypeDecimal,
	"money":   schema.TypeDecimal,

	"float":            schema.TypeFloat,
	"real":             schema.TypeFloat,
	"float4":           schema.TypeFloat,
	"double":           schema.TypeDouble,
	"double precision": schema.TypeDouble,
	"float8":           schema.TypeDouble,

	"boolean": schema.TypeBoolean,
	"bool":    schema.TypeBoolean,

	"date":                        schema.TypeDate,
	"datetime":                    schema.TypeDateTime,
	"timestamp":                   schema.TypeDateTime,
	"timestamp without time zone": schema.TypeDateTime,
	"timestamp with time zone":    schema.TypeDateTime,
	"timestamptz":                 schema.TypeDateTime,
	"time":                        schema.TypeTime,
	"time without time zone":      schema.TypeTime,
	"time with time zone":         schema.TypeTime,
	"timetz":                      schema.TypeTime,
	"year":                        schema.TypeYear,

	"json":  schema.TypeJSON,
	"jsonb": schema.TypeJSON,

	"enum": schema.TypeEnum,

	"uuid": schema.TypeUUID,

	"binary":     schema.TypeBinary,
	"varbinary":  schema.TypeBinary,
	"blob":       schema.TypeBinary,
	"tinyblob":   schema.TypeBinary,
	"mediumblob": schema.TypeBinary,
	"longblob":   schema.TypeBinary,
	"bytea":      schema.TypeBinary,
}

var common = &engineTable{names: commonNames}

var tables = map[schema.Engine]*engineTable{
	schema.EngineMySQL: {
		special: map[string]schema.SemanticType{
			"tinyint(1)": schema.TypeBoolean,
			"bit(1)":     schema.TypeBoolean,
			"char(36)":   schema.TypeUUID,
		},
		names: with(commonNames, map[string]schema.SemanticType{
			"bit":        schema.TypeBinary,
			"real":       schema.TypeDouble,
			"set":        schema.TypeString,
			"geometry":   schema.TypeString,
			"point":      schema.TypeString,
			"linestring": schema.TypeString,
			"polygon":    schema.TypeString,
		}),
	},
	schema.EnginePostgres: {
		names: with(commonNames, map[string]schema.SemanticType{
			"float":    schema.TypeDouble,
			"citext":   schema.TypeText,
			"xml":      schema.TypeText,
			"tsvector": schema.TypeText,
			"inet":     schema.TypeString,
			"cidr":     schema.TypeString,
			"macaddr":  schema.TypeString,
			"interval": schema.TypeString,
			"bit":      schema.TypeString,
			"varbit":   schema.TypeString,
			"oid":      schema.TypeInteger,
			"hstore":   schema.TypeJSON,
		}),
		affinity: func(base string) (schema.SemanticType, bool) {
			if strings.HasSuffix(base, "[]") || strings.HasPrefix(base, "_") || base == "array" {
				return schema.TypeJSON, true
			}
			return 0, false
		},
	},
	schema.EngineSQLite: {
		special: map[string]schema.SemanticType{
			"tinyint(1)": schema.TypeBoolean,
		},
		names: with(commonNames, map[string]schema.SemanticType{
			"real": schema.TypeDouble,
		}),
		affinity: sqliteAffinity,
	},
	schema.EngineSQLServer: {
		special: map[string]schema.SemanticType{
			"nvarchar(max)":  schema.TypeText,
			"varchar(max)":   schema.TypeText,
			"varbinary(max)": schema.TypeBinary,
		},
		names: with(commonNames, map[string]schema.SemanticType{
			"bit":              schema.TypeBoolean,
			"float":            schema.TypeDouble,
			"real":             schema.TypeFloat,
			"smallmoney":       schema.TypeDecimal,
			"datetime2":        schema.TypeDateTime,
			"smalldatetime":    schema.TypeDateTime,
			"datetimeoffset":   schema.TypeDateTime,
			"timestamp":        schema.TypeBinary,
			"rowversion":       schema.TypeBinary,
			"image":            schema.TypeBinary,
			"xml":              schema.TypeText,
			"uniqueidentifier": schema.TypeUUID,
			"sql_variant":      schema.TypeString,
			"hierarchyid":      schema.TypeString,
		}),
	},
}

func with(base, overrides map[string]schema.SemanticType) map[string]schema.SemanticType {
	out := maps.Clone(base)
	maps.Copy(out, overrides)
	return out
}

// sqliteAffinity applies SQLite's column affinity rules to declared types
// that are not in the name table.
func sqliteAffinity(base string) (schema.SemanticType, bool) {
	switch {
	case strings.Contains(base, "int"):
		return schema.TypeInteger, true
	case strings.Contains(base, "clob"), strings.Contains(base, "text"):
		return schema.TypeText, true
	case strings.Contains(base, "char"):
		return schema.TypeString, true
	case strings.Contains(base, "blob"):
		return schema.TypeBinary, true
	case strings.Contains(base, "real"), strings.Contains(base, "floa"), strings.Contains(base, "doub"):
		return schema.TypeDouble, true
	case strings.Contains(base, "bool"):
		return schema.TypeBoolean, true
	case strings.Contains(base, "datetime"), strings.Contains(base, "timestamp"):
		return schema.TypeDateTime, true
	}
	return 0, false
}
