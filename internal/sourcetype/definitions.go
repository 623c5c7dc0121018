package sourcetype

import "strings"

const fileDefinitionID = "0d7b5d7f-e04b-4684-b0d1-5baef1b16a76"

var definitionIDs = map[Type]string{
	MySQL:        "435bb9a5-7887-4809-aa58-28c27df0d7ad",
	Postgres:     "2168e9f4-19ca-4019-adf5-354350c5dbef",
	GoogleSheets: "71607ba1-1d4f-4494-a784-63d33e0a2673",
	CSV:          fileDefinitionID,
	Excel:        fileDefinitionID,
}

// DefinitionID returns the ELT platform's source definition for t.
func DefinitionID(t Type) (string, error) {
	id, ok := definitionIDs[t]
	if !ok {
		return "", &UnsupportedTypeError{ID: string(t)}
	}
	return id, nil
}

// Definition is one entry of the platform connector catalog as listed by
// GET /source-definitions.
type Definition struct {
	SourceDefinitionID string `json:"sourceDefinitionId"`
	Name               string `json:"name"`
	DockerRepository   string `json:"dockerRepository"`
	DockerImageTag     string `json:"dockerImageTag"`
	DocumentationURL   string `json:"documentationUrl"`
	Icon               string `json:"icon,omitempty"`
}

var definitions = []Definition{
	{
		SourceDefinitionID: definitionIDs[MySQL],
		Name:               "MySQL",
		DockerRepository:   "airbyte/source-mysql",
		DockerImageTag:     "3.3.2",
		DocumentationURL:   "https://docs.airbyte.com/integrations/sources/mysql",
		Icon:               "mdi-database",
	},
	{
		SourceDefinitionID: definitionIDs[Postgres],
		Name:               "Postgres",
		DockerRepository:   "airbyte/source-postgres",
		DockerImageTag:     "3.3.0",
		DocumentationURL:   "https://docs.airbyte.com/integrations/sources/postgres",
		Icon:               "mdi-database",
	},
	{
		SourceDefinitionID: definitionIDs[GoogleSheets],
		Name:               "Google Sheets",
		DockerRepository:   "airbyte/source-google-sheets",
		DockerImageTag:     "0.3.12",
		DocumentationURL:   "https://docs.airbyte.com/integrations/sources/google-sheets",
		Icon:               "mdi-google-spreadsheet",
	},
	{
		SourceDefinitionID: fileDefinitionID,
		Name:               "File (CSV, Excel, JSON...)",
		DockerRepository:   "airbyte/source-file",
		DockerImageTag:     "0.3.15",
		DocumentationURL:   "https://docs.airbyte.com/integrations/sources/file",
		Icon:               "mdi-file-delimited",
	},
	{
		SourceDefinitionID: "d9c135ee-0acb-4101-b996-1a1cfca10536",
		Name:               "Salesforce",
		DockerRepository:   "airbyte/source-salesforce",
		DockerImageTag:     "2.1.5",
		DocumentationURL:   "https://docs.airbyte.com/integrations/sources/salesforce",
		Icon:               "mdi-salesforce",
	},
}

func Definitions() []Definition {
	return append([]Definition(nil), definitions...)
}

// LookupDefinition finds a catalog entry by its definition id.
func LookupDefinition(id string) (Definition, bool) {
	id = strings.TrimSpace(id)
	for _, d := range definitions {
		if d.SourceDefinitionID == id {
			return d, true
		}
	}
	return Definition{}, false
}
