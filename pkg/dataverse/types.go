package dataverse

import (
	"strings"

	"github.com/powerplatform-go/dataverse/internal/constants"
)

// Record is a single row expressed as Web API attribute names and values.
// Lookups use "name@odata.bind" keys, option sets use their integer values.
type Record map[string]interface{}

// ID returns the primary id attribute for the given logical name, or the
// empty string when the record does not carry one.
func (r Record) ID(logicalName string) string {
	value, ok := r[logicalName+"id"]
	if !ok {
		return ""
	}

	id, ok := value.(string)
	if !ok {
		return ""
	}

	return id
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	clone := make(Record, len(r))
	for key, value := range r {
		clone[key] = value
	}

	return clone
}

// TableInfo describes a Dataverse table as resolved from EntityDefinitions.
type TableInfo struct {
	MetadataID    string `json:"MetadataId"    yaml:"metadata_id"`
	LogicalName   string `json:"LogicalName"   yaml:"logical_name"`
	SchemaName    string `json:"SchemaName"    yaml:"schema_name"`
	EntitySetName string `json:"EntitySetName" yaml:"entity_set_name"`
}

// TypeToken returns the "@odata.type" annotation value for records of this
// table, e.g. "Microsoft.Dynamics.CRM.account".
func (t *TableInfo) TypeToken() string {
	return constants.TypeTokenPrefix + strings.ToLower(t.LogicalName)
}

// PrimaryIDAttribute returns the conventional primary key attribute name,
// e.g. "accountid".
func (t *TableInfo) PrimaryIDAttribute() string {
	return strings.ToLower(t.LogicalName) + "id"
}

// Page is one page of rows from a collection query.
type Page struct {
	// Rows are the records on this page.
	Rows []Record `json:"value"`

	// NextLink is the opaque continuation URL, empty on the final page.
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// ListResponse is a generic OData collection envelope.
type ListResponse[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// BulkDeleteJob identifies a server-side background deletion job.
type BulkDeleteJob struct {
	JobID string `json:"JobId" yaml:"job_id"`
}
