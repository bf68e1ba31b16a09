package api

import (
	"github.com/dmitrijs2005/assettrack/internal/client/session"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the login payload. Older backends send only the token;
// User is nil then.
type LoginResponse struct {
	Token string               `json:"token"`
	User  *session.UserProfile `json:"user,omitempty"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// FileInfo describes an uploaded dataset.
type FileInfo struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	UploadDate string `json:"upload_date,omitempty"`
}

// LatestFile is the latest-file payload.
type LatestFile struct {
	ID   int64  `json:"latest_file_id"`
	Name string `json:"latest_file_name"`
}

// Match is one dataset row returned by a serial-number lookup.
type Match struct {
	SerialNumber     string `json:"pos_serial_number"`
	Type             string `json:"pos_type,omitempty"`
	Warehouse        string `json:"outlet_whs_name,omitempty"`
	ScannedCondition string `json:"scanned_technical_condition,omitempty"`
	ScannedWarehouse string `json:"scanned_outlet_whs_name,omitempty"`
	AccountName      string `json:"account_name,omitempty"`
	AccountAddress   string `json:"account_address,omitempty"`
}

// UpdateRequest writes scan results back to a dataset row.
type UpdateRequest struct {
	FileID           int64  `json:"latest_file_id"`
	SerialNumber     string `json:"pos_serial_number"`
	Condition        string `json:"scanned_technical_condition"`
	ScannedWarehouse string `json:"scanned_outlet_whs_name"`
}

type Condition struct {
	ID   int64  `json:"id"`
	Name string `json:"technical_condition"`
}

type Warehouse struct {
	ID   int64  `json:"id"`
	Name string `json:"whs_name"`
}

// Attachment is a downloaded export.
type Attachment struct {
	Filename    string
	ContentType string
	Body        []byte
}

type messageResponse struct {
	Message string `json:"message"`
}

// Route is one delivery stop of a day's routing plan.
type Route struct {
	ID               int64  `json:"id"`
	TypeOfRoute      string `json:"type_of_route"`
	SRName           string `json:"sr_name,omitempty"`
	Region           string `json:"region,omitempty"`
	CompanyName      string `json:"company_name"`
	OutletName       string `json:"outlet_name"`
	DeliveryAddress  string `json:"delivery_address"`
	POSModel         string `json:"pos_model,omitempty"`
	SerialNumber     string `json:"pos_serial_number"`
	Comment          string `json:"comment,omitempty"`
	TransportCompany string `json:"transport_company,omitempty"`
	DateForDelivery  string `json:"date_for_delivery,omitempty"`
}

// RouteTypeInstall marks stops where a terminal is installed; only those
// take a scanned serial.
const RouteTypeInstall = "install"

// RouteUpdate holds the editable fields of one route record.
type RouteUpdate struct {
	SerialNumber string `json:"pos_serial_number"`
}
