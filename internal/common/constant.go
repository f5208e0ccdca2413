package common

// StaffTokenHeaderName is the HTTP header carrying the staff access token
// issued by the external auth service.
const StaffTokenHeaderName = "X-Staff-Token"

// RoleCheckIn is the role a staff identity must carry to submit check-in
// batches.
const RoleCheckIn = "checkin"
