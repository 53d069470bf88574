// Package common contains shared constants and sentinel errors used across
// farmsync components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// DeviceIDHeaderName carries the id a client generated for its local store.
// The server only logs it.
const DeviceIDHeaderName = "device_id"

// NotAvailable is shown in place of a referenced record that cannot be found.
const NotAvailable = "N/A"
