package feed

import (
	"reflect"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/JonMunkholm/outletsync/internal/core"
)

// CleanCell trims a raw cell and undoes spreadsheet export artifacts:
// formula-protected values (="0812") and surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return norm.NFC.String(strings.TrimSpace(s))
}

// CleanHeader normalizes a header cell for lookup.
func CleanHeader(s string) string {
	s = strings.ToLower(CleanCell(s))
	return strings.Join(strings.Fields(s), "_")
}

// recordFields maps a lower-cased json field name to its OutletRecord
// field index.
var recordFields = buildRecordFields()

func buildRecordFields() map[string]int {
	t := reflect.TypeOf(core.OutletRecord{})
	out := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		out[strings.ToLower(name)] = i
	}
	return out
}

// setField stores value in the record field named by a cleaned header.
// Unknown headers report false.
func setField(rec *core.OutletRecord, header, value string) bool {
	i, ok := recordFields[header]
	if !ok {
		return false
	}
	reflect.ValueOf(rec).Elem().Field(i).SetString(value)
	return true
}
