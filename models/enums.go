package models

type ItemType string

const (
	ItemTypeRawMaterial  ItemType = "RM"
	ItemTypeAccessory    ItemType = "AC"
	ItemTypeFinishedGood ItemType = "FG"
)

func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeRawMaterial, ItemTypeAccessory, ItemTypeFinishedGood:
		return true
	}
	return false
}

type Precision string

const (
	PrecisionZero  Precision = "0"
	PrecisionOne   Precision = "1"
	PrecisionTwo   Precision = "2"
	PrecisionThree Precision = "3"
	PrecisionFour  Precision = "4"
)

func (p Precision) IsValid() bool {
	switch p {
	case PrecisionZero, PrecisionOne, PrecisionTwo, PrecisionThree, PrecisionFour:
		return true
	}
	return false
}

type MovementDirection string

const (
	MovementDirectionIn  MovementDirection = "IN"
	MovementDirectionOut MovementDirection = "OUT"
)

// MovementReferenceType tags the originating document of a stock movement.
type MovementReferenceType string

const (
	MovementReferenceTypeOpeningStock  MovementReferenceType = "OS"
	MovementReferenceTypeAdjustment    MovementReferenceType = "ADJ"
	MovementReferenceTypeIssuance      MovementReferenceType = "MI"
	MovementReferenceTypeGoodsReceipt  MovementReferenceType = "GR"
	MovementReferenceTypeFinishedGoods MovementReferenceType = "FGR"
	MovementReferenceTypeVendorReturn  MovementReferenceType = "VR"
	MovementReferenceTypeRebuildRepair MovementReferenceType = "RB"
)

type ProductionOrderStatus string

const (
	ProductionOrderStatusDraft        ProductionOrderStatus = "Draft"
	ProductionOrderStatusIssued       ProductionOrderStatus = "Issued"
	ProductionOrderStatusInProduction ProductionOrderStatus = "InProduction"
	ProductionOrderStatusPartial      ProductionOrderStatus = "Partial"
	ProductionOrderStatusCompleted    ProductionOrderStatus = "Completed"
	ProductionOrderStatusCancelled    ProductionOrderStatus = "Cancelled"
)

// isIssuable reports whether materials may still be issued against an order in this status.
func (s ProductionOrderStatus) isIssuable() bool {
	switch s {
	case ProductionOrderStatusDraft, ProductionOrderStatusIssued, ProductionOrderStatusInProduction, ProductionOrderStatusPartial:
		return true
	}
	return false
}

func (s ProductionOrderStatus) isReceivable() bool {
	switch s {
	case ProductionOrderStatusIssued, ProductionOrderStatusInProduction, ProductionOrderStatusPartial:
		return true
	}
	return false
}

type OutputMode string

const (
	OutputModePieces OutputMode = "Pieces"
	OutputModeSets   OutputMode = "Sets"
)

func (m OutputMode) IsValid() bool {
	switch m {
	case OutputModePieces, OutputModeSets:
		return true
	}
	return false
}

type IssueType string

const (
	IssueTypeInitial     IssueType = "Initial"
	IssueTypeAdditional  IssueType = "Additional"
	IssueTypeReplacement IssueType = "Replacement"
)

func (t IssueType) IsValid() bool {
	switch t {
	case IssueTypeInitial, IssueTypeAdditional, IssueTypeReplacement:
		return true
	}
	return false
}

type VendorReturnStatus string

const (
	VendorReturnStatusPending   VendorReturnStatus = "Pending"
	VendorReturnStatusProcessed VendorReturnStatus = "Processed"
	VendorReturnStatusVoided    VendorReturnStatus = "Voided"
)

// VarianceStatus classifies a reconciliation line. OK when |variance| is within
// 1% of theoretical usage.
type VarianceStatus string

const (
	VarianceStatusOK    VarianceStatus = "OK"
	VarianceStatusOver  VarianceStatus = "OVER"
	VarianceStatusUnder VarianceStatus = "UNDER"
)

type ResetPeriod string

const (
	ResetPeriodNever   ResetPeriod = "Never"
	ResetPeriodMonthly ResetPeriod = "Monthly"
	ResetPeriodYearly  ResetPeriod = "Yearly"
)

func (p ResetPeriod) IsValid() bool {
	switch p {
	case ResetPeriodNever, ResetPeriodMonthly, ResetPeriodYearly:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleAdmin UserRole = "A"
	UserRoleOwner UserRole = "O"
	UserRoleClerk UserRole = "C"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAdmin, UserRoleOwner, UserRoleClerk:
		return true
	}
	return false
}
