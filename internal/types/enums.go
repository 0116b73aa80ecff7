package types

// PlanTier identifies the subscription plan for an agency.
// Tiers form a total order; see PlanRank.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanBasic      PlanTier = "basic"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// planRanks defines the fixed tier ordering used for entitlement checks.
// Unknown tiers rank below free so that a corrupted plan value never
// grants paid features.
var planRanks = map[PlanTier]int{
	PlanFree:       0,
	PlanBasic:      1,
	PlanPro:        2,
	PlanEnterprise: 3,
}

// PlanRank returns the ordinal position of the tier and whether the tier
// is a known value.
func PlanRank(tier PlanTier) (int, bool) {
	rank, ok := planRanks[tier]
	return rank, ok
}

// SubjectRole defines the kind of acting principal within an agency.
type SubjectRole string

const (
	RoleOwner    SubjectRole = "owner"
	RoleStaff    SubjectRole = "staff"
	RoleCustomer SubjectRole = "customer"
)

// FeatureGroup categorizes features for presentation in the settings editor
// and navigation. Groups render in the order defined by FeatureGroupOrder.
type FeatureGroup string

const (
	GroupCore      FeatureGroup = "core"
	GroupListings  FeatureGroup = "listings"
	GroupMarketing FeatureGroup = "marketing"
	GroupAnalytics FeatureGroup = "analytics"
	GroupRentals   FeatureGroup = "rentals"
	GroupOffice    FeatureGroup = "office"
)

// FeatureGroupOrder is the stable presentation order for feature groups.
// The settings editor and menu rendering must preserve this order.
var FeatureGroupOrder = []FeatureGroup{
	GroupCore,
	GroupListings,
	GroupMarketing,
	GroupAnalytics,
	GroupRentals,
	GroupOffice,
}

// StaffPermissionKey is the closed set of coarse permission buckets that can
// be granted to a staff account. It is deliberately smaller than the feature
// key set; capabilities without a mapped permission are permission-free for
// staff.
type StaffPermissionKey string

const (
	PermListingManage  StaffPermissionKey = "listing_manage"
	PermCustomerView   StaffPermissionKey = "customer_view"
	PermContractView   StaffPermissionKey = "contract_view"
	PermRentalManage   StaffPermissionKey = "rental_manage"
	PermSettingsManage StaffPermissionKey = "settings_manage"
)

// AllStaffPermissionKeys lists every grantable permission key. Used by the
// staff-permission editor to validate grant updates.
var AllStaffPermissionKeys = []StaffPermissionKey{
	PermListingManage,
	PermCustomerView,
	PermContractView,
	PermRentalManage,
	PermSettingsManage,
}

// IsValidStaffPermissionKey reports whether key is a member of the closed
// permission enumeration.
func IsValidStaffPermissionKey(key StaffPermissionKey) bool {
	for _, k := range AllStaffPermissionKeys {
		if k == key {
			return true
		}
	}
	return false
}
