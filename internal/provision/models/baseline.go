// Package models defines the baseline configuration a tenant needs before it
// can operate: pay scales, tax brackets and hour allocations. Provisioning
// seeds these; the deduction engine reads pay scales for its rate multiplier.
package models

import (
	"github.com/shopspring/decimal"

	id "caretrack/pkg/domain"
)

// Baseline category names. Verify reports against these; EnsureBaseline seeds
// whichever are missing.
const (
	CategoryPayScales       = "pay_scales"
	CategoryTaxBrackets     = "tax_brackets"
	CategoryHourAllocations = "hour_allocations"
)

// BaselineCategories lists every category a fully provisioned tenant has, in
// seeding order.
func BaselineCategories() []string {
	return []string{CategoryPayScales, CategoryTaxBrackets, CategoryHourAllocations}
}

// PayScale maps a rate code to its base hourly rate and penalty multiplier.
type PayScale struct {
	TenantID   id.TenantID     `json:"tenant_id"`
	Code       string          `json:"code"`
	BaseRate   decimal.Decimal `json:"base_rate"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// TaxBracket is one progressive tax band. Ordinal orders the bands from the
// lowest threshold up.
type TaxBracket struct {
	TenantID  id.TenantID     `json:"tenant_id"`
	Ordinal   int             `json:"ordinal"`
	Threshold decimal.Decimal `json:"threshold"`
	Rate      decimal.Decimal `json:"rate"`
}

// HourAllocation caps the weekly rostered hours for a role.
type HourAllocation struct {
	TenantID    id.TenantID     `json:"tenant_id"`
	Role        id.Role         `json:"role"`
	WeeklyHours decimal.Decimal `json:"weekly_hours"`
}

// Pay scale codes seeded for every tenant.
const (
	PayScaleWeekday       = "weekday"
	PayScaleEvening       = "evening"
	PayScaleSaturday      = "saturday"
	PayScaleSunday        = "sunday"
	PayScalePublicHoliday = "public_holiday"
)

// DefaultPayScales returns the seeded pay scales for a new tenant. Base rate
// and multipliers follow the standard award; tenants adjust them later.
func DefaultPayScales(tenantID id.TenantID) []PayScale {
	base := decimal.RequireFromString("52.00")
	mult := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	return []PayScale{
		{TenantID: tenantID, Code: PayScaleWeekday, BaseRate: base, Multiplier: mult("1.00")},
		{TenantID: tenantID, Code: PayScaleEvening, BaseRate: base, Multiplier: mult("1.25")},
		{TenantID: tenantID, Code: PayScaleSaturday, BaseRate: base, Multiplier: mult("1.50")},
		{TenantID: tenantID, Code: PayScaleSunday, BaseRate: base, Multiplier: mult("2.00")},
		{TenantID: tenantID, Code: PayScalePublicHoliday, BaseRate: base, Multiplier: mult("2.50")},
	}
}

// DefaultTaxBrackets returns the seeded progressive bands.
func DefaultTaxBrackets(tenantID id.TenantID) []TaxBracket {
	band := func(ord int, threshold, rate string) TaxBracket {
		return TaxBracket{
			TenantID:  tenantID,
			Ordinal:   ord,
			Threshold: decimal.RequireFromString(threshold),
			Rate:      decimal.RequireFromString(rate),
		}
	}
	return []TaxBracket{
		band(1, "0", "0.00"),
		band(2, "18200", "0.19"),
		band(3, "45000", "0.325"),
		band(4, "120000", "0.37"),
		band(5, "180000", "0.45"),
	}
}

// DefaultHourAllocations returns the seeded weekly hour caps per role.
// Console managers are platform staff and carry no allocation.
func DefaultHourAllocations(tenantID id.TenantID) []HourAllocation {
	hours := func(role id.Role, h string) HourAllocation {
		return HourAllocation{TenantID: tenantID, Role: role, WeeklyHours: decimal.RequireFromString(h)}
	}
	return []HourAllocation{
		hours(id.RoleSupportWorker, "38"),
		hours(id.RoleTeamLeader, "38"),
		hours(id.RoleCoordinator, "35"),
		hours(id.RoleAdmin, "35"),
	}
}
