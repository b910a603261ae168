package bwkp

// Records in this file mirror the JSON emitted by the Bitwarden CLI
// (`bw list ...`). They are decoded once at the ingestion boundary and treated
// as read-only afterwards.

// FieldType is the Bitwarden custom field type code.
type FieldType int

const (
	FieldText    FieldType = 0
	FieldHidden  FieldType = 1
	FieldBoolean FieldType = 2
	FieldLinked  FieldType = 3
)

// Linked field targets understood by the exporter.
const (
	LinkedUsername = 100
	LinkedPassword = 101
)

// VaultStatus is the lock state reported by the vault client.
type VaultStatus string

const (
	StatusUnlocked        VaultStatus = "unlocked"
	StatusLocked          VaultStatus = "locked"
	StatusUnauthenticated VaultStatus = "unauthenticated"
)

// Organization is a shared vault owning collections.
type Organization struct {
	Object  string `json:"object"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Status  int    `json:"status"`
	Type    int    `json:"type"`
	Enabled bool   `json:"enabled"`

	// Collections in listing order. Not part of the CLI output.
	Collections []*Collection `json:"-"`
}

// Collection groups organization items. Name may contain '/' separators.
type Collection struct {
	Object         string  `json:"object"`
	ID             string  `json:"id"`
	OrganizationID string  `json:"organizationId"`
	Name           string  `json:"name"`
	ExternalID     *string `json:"externalId"`

	// Items placed here by the membership resolver, in listing order.
	Items []*Item `json:"-"`
}

// Folder is a personal-vault grouping. A nil ID is the implicit "No Folder".
type Folder struct {
	Object string  `json:"object"`
	ID     *string `json:"id"`
	Name   string  `json:"name"`

	Items []*Item `json:"-"`
}

// Item is one stored vault record.
type Item struct {
	Object          string            `json:"object"`
	ID              string            `json:"id"`
	OrganizationID  *string           `json:"organizationId"`
	FolderID        *string           `json:"folderId"`
	Type            int               `json:"type"`
	Reprompt        int               `json:"reprompt"`
	Name            string            `json:"name"`
	Notes           *string           `json:"notes"`
	Favorite        bool              `json:"favorite"`
	Login           *Login            `json:"login,omitempty"`
	CollectionIDs   []string          `json:"collectionIds"`
	Attachments     []*Attachment     `json:"attachments,omitempty"`
	Fields          []Field           `json:"fields,omitempty"`
	PasswordHistory []PasswordHistory `json:"passwordHistory"`
	RevisionDate    string            `json:"revisionDate"`
	CreationDate    string            `json:"creationDate"`
	DeletedDate     *string           `json:"deletedDate"`
}

// InOrganization reports whether the item belongs to an organization vault.
func (i *Item) InOrganization() bool {
	return i.OrganizationID != nil && *i.OrganizationID != ""
}

// InFolder reports whether the item is filed in a personal folder.
func (i *Item) InFolder() bool {
	return i.FolderID != nil && *i.FolderID != ""
}

// Login holds the credential part of an item.
type Login struct {
	Username             *string           `json:"username"`
	Password             *string           `json:"password"`
	TOTP                 *string           `json:"totp"`
	URIs                 []URI             `json:"uris,omitempty"`
	PasswordRevisionDate *string           `json:"passwordRevisionDate"`
	Fido2Credentials     []Fido2Credential `json:"fido2Credentials,omitempty"`
}

// URI is one login URI with an optional match strategy.
type URI struct {
	Match *int   `json:"match"`
	URI   string `json:"uri"`
}

// Field is an item custom field. LinkedID is only set for FieldLinked.
type Field struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Type     FieldType `json:"type"`
	LinkedID *int      `json:"linkedId"`
}

// Attachment is a file attached to an item. LocalPath is filled in once the
// content has been fetched.
type Attachment struct {
	ID        string `json:"id"`
	FileName  string `json:"fileName"`
	Size      string `json:"size"`
	SizeName  string `json:"sizeName"`
	URL       string `json:"url"`
	LocalPath string `json:"-"`
}

// Fido2Credential is a passkey stored on a login. KDBX has no native
// representation for it.
type Fido2Credential struct {
	CredentialID    string  `json:"credentialId"`
	KeyType         string  `json:"keyType"`
	KeyAlgorithm    string  `json:"keyAlgorithm"`
	KeyCurve        string  `json:"keyCurve"`
	KeyValue        string  `json:"keyValue"`
	RpID            string  `json:"rpId"`
	UserHandle      string  `json:"userHandle"`
	UserName        *string `json:"userName"`
	Counter         string  `json:"counter"`
	RpName          string  `json:"rpName"`
	UserDisplayName string  `json:"userDisplayName"`
	Discoverable    string  `json:"discoverable"`
	CreationDate    string  `json:"creationDate"`
}

// PasswordHistory is a previously used password.
type PasswordHistory struct {
	LastUsedDate string `json:"lastUsedDate"`
	Password     string `json:"password"`
}

// deref returns the pointed-to string or "".
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
