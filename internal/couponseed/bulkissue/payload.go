package bulkissue

import (
	"github.com/pkg/errors"

	"github.com/armadaproject/couponseed/internal/common/couponerrors"
	"github.com/armadaproject/couponseed/internal/couponseed/barcode"
	"github.com/armadaproject/couponseed/internal/couponseed/configuration"
)

var barcodeSources = map[barcode.Family]string{
	barcode.Pos12: "CouponPos12Barcode",
	barcode.Gen16: "CouponGeneral16Barcode",
	barcode.Mos:   "CouponMosBarcode",
}

// Payload is the input of the bulk-issue state machine.
type Payload struct {
	CouponMasterId            string `json:"couponMasterId"`
	CouponCode                string `json:"couponCode,omitempty"`
	IssuedNumber              int    `json:"issuedNumber"`
	BarcodeSource             string `json:"barcodeSource"`
	BatchSize                 int    `json:"batchSize"`
	PublishedFrom             string `json:"publishedFrom"`
	PublishedOrganizationId   string `json:"publishedOrganizationId"`
	PublishedOrganizationName string `json:"publishedOrganizationName"`
	Fifo                      bool   `json:"fifo"`
	Description               string `json:"description"`
}

// BuildPayload looks up the coupon master for req and fills in the workflow-wide settings.
// Masters are keyed by family name, except for mos where they are keyed by sub-code.
func BuildPayload(cfg configuration.WorkflowConfig, req StartRequest) (*Payload, error) {
	if req.Count <= 0 {
		return nil, errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "Count",
			Value:   req.Count,
			Message: "must be positive",
		})
	}
	source, ok := barcodeSources[req.Family]
	if !ok {
		return nil, errors.WithStack(&couponerrors.ErrInvalidArgument{Name: "Family", Value: req.Family})
	}

	key := req.Family.String()
	if req.Family.IsMulti() {
		key = req.SubCode
	}
	master, ok := cfg.Masters[key]
	if !ok {
		return nil, errors.WithStack(&couponerrors.ErrInvalidArgument{
			Name:    "SubCode",
			Value:   key,
			Message: "no coupon master configured",
		})
	}

	description := cfg.Description
	if master.Description != "" {
		description = master.Description
	}
	payload := &Payload{
		CouponMasterId:            master.CouponMasterId,
		IssuedNumber:              req.Count,
		BarcodeSource:             source,
		BatchSize:                 cfg.BatchSize,
		PublishedFrom:             cfg.PublishedFrom,
		PublishedOrganizationId:   master.PublishedOrganizationId,
		PublishedOrganizationName: master.PublishedOrganizationName,
		Fifo:                      cfg.Fifo,
		Description:               description,
	}
	if req.Family.IsMulti() {
		payload.CouponCode = req.SubCode
	}
	return payload, nil
}
