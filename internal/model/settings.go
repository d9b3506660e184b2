package model

// ExpirationPolicy selects what the expiration sweep does with sessions past
// their deadline.
type ExpirationPolicy string

const (
	// PolicyManual flags the session and seat EXPIRED and leaves them attached.
	PolicyManual ExpirationPolicy = "MANUAL"
	// PolicyAuto ends the session and frees the resource.
	PolicyAuto ExpirationPolicy = "AUTO"
)

func (p ExpirationPolicy) Valid() bool { return p == PolicyManual || p == PolicyAuto }

// QRFormat is the wire format used when generating scan codes. Parsing always
// accepts both.
type QRFormat string

const (
	FormatLegacy QRFormat = "LEGACY"
	FormatApp1   QRFormat = "APP1"
)

func (f QRFormat) Valid() bool { return f == FormatLegacy || f == FormatApp1 }

type ScanMode string

const (
	ScanAuto    ScanMode = "AUTO"
	ScanHIDOnly ScanMode = "HID_ONLY"
	ScanWebOnly ScanMode = "WEB_ONLY"
)

func (m ScanMode) Valid() bool { return m == ScanAuto || m == ScanHIDOnly || m == ScanWebOnly }

// Setting keys in the app_settings table.
const (
	SettingExpirationHandling      = "expirationHandling"
	SettingQRFormat                = "qrFormat"
	SettingCheckoutConfirmRequired = "checkoutConfirmRequired"
	SettingScanMode                = "scanMode"
)

// Settings is the operator-tunable configuration.
type Settings struct {
	ExpirationHandling      ExpirationPolicy `json:"expirationHandling"`
	QRFormat                QRFormat         `json:"qrFormat"`
	CheckoutConfirmRequired bool             `json:"checkoutConfirmRequired"`
	ScanMode                ScanMode         `json:"scanMode"`
}

// SettingsPatch is a partial update; nil fields are left unchanged.
type SettingsPatch struct {
	ExpirationHandling      *ExpirationPolicy `json:"expirationHandling,omitempty"`
	QRFormat                *QRFormat         `json:"qrFormat,omitempty"`
	CheckoutConfirmRequired *bool             `json:"checkoutConfirmRequired,omitempty"`
	ScanMode                *ScanMode         `json:"scanMode,omitempty"`
}
