package httptransport

import (
	"github.com/asaskevich/govalidator"

	dErrors "nameclaim/pkg/domain-errors"
)

// reserveDomainsRequest is the body of POST /reserve-domain.
type reserveDomainsRequest struct {
	Domains       []string `json:"domains"`
	WalletAddress string   `json:"walletAddress"`
}

func (r reserveDomainsRequest) validate() error {
	if len(r.Domains) == 0 {
		return dErrors.New(dErrors.CodeValidation, "domains are required")
	}
	for _, d := range r.Domains {
		if !govalidator.StringLength(d, "1", "253") {
			return dErrors.New(dErrors.CodeValidation, "domain names must be 1-253 characters")
		}
	}
	if r.WalletAddress != "" && !govalidator.StringLength(r.WalletAddress, "1", "128") {
		return dErrors.New(dErrors.CodeValidation, "walletAddress is too long")
	}
	return nil
}

// retryTransferRequest is the body of POST /retry-transfer.
type retryTransferRequest struct {
	DomainName    string `json:"domainName"`
	WalletAddress string `json:"walletAddress"`
}

func (r retryTransferRequest) validate() error {
	if !govalidator.StringLength(r.DomainName, "1", "253") {
		return dErrors.New(dErrors.CodeValidation, "domainName is required")
	}
	if !govalidator.StringLength(r.WalletAddress, "1", "128") {
		return dErrors.New(dErrors.CodeValidation, "walletAddress is required")
	}
	return nil
}

// expiredCheckoutRequest is the body of POST /handle-expired-checkout.
type expiredCheckoutRequest struct {
	Domains []struct {
		Name string `json:"name"`
	} `json:"domains"`
}

func (r expiredCheckoutRequest) names() []string {
	names := make([]string, 0, len(r.Domains))
	for _, d := range r.Domains {
		names = append(names, d.Name)
	}
	return names
}

func (r expiredCheckoutRequest) validate() error {
	if len(r.Domains) == 0 {
		return dErrors.New(dErrors.CodeValidation, "domains are required")
	}
	return nil
}

// domainStatusRequest is the body of POST /domain-status.
type domainStatusRequest struct {
	OperationIDs []string `json:"operationIds"`
}

// storeOperationRequest is the body of POST /store-operation.
type storeOperationRequest struct {
	Domain        string `json:"domain"`
	OperationID   string `json:"operationId"`
	Status        string `json:"status,omitempty"`
	WalletAddress string `json:"walletAddress,omitempty"`
	NeedsTransfer *bool  `json:"needsTransfer,omitempty"`
}

func (r storeOperationRequest) validate() error {
	if !govalidator.StringLength(r.Domain, "1", "253") {
		return dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	if !govalidator.StringLength(r.OperationID, "1", "128") {
		return dErrors.New(dErrors.CodeValidation, "operationId is required")
	}
	return nil
}

// createPaymentIntentRequest is the body of POST /create-payment-intent.
// CheckoutStartTime is unix milliseconds, as supplied by the storefront.
type createPaymentIntentRequest struct {
	Amount            int64    `json:"amount"`
	DomainNames       []string `json:"domainNames"`
	WalletAddress     string   `json:"walletAddress"`
	CheckoutStartTime int64    `json:"checkoutStartTime"`
}

func (r createPaymentIntentRequest) validate() error {
	if r.Amount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	if len(r.DomainNames) == 0 {
		return dErrors.New(dErrors.CodeValidation, "domainNames are required")
	}
	return nil
}

// verifyPaymentRequest is the body of POST /verify-payment.
type verifyPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret"`
}

func (r verifyPaymentRequest) validate() error {
	if !govalidator.StringLength(r.PaymentIntentID, "1", "128") {
		return dErrors.New(dErrors.CodeValidation, "paymentIntentId is required")
	}
	if !govalidator.StringLength(r.ClientSecret, "1", "256") {
		return dErrors.New(dErrors.CodeValidation, "clientSecret is required")
	}
	return nil
}
