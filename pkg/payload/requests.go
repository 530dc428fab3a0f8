package payload

import (
	"fmt"
	"time"

	"github.com/aretw0/bpmgate/pkg/domain"
	"github.com/aretw0/bpmgate/pkg/variables"
)

// Process keys of the bundled workflows.
const (
	EmployeeOnboardingKey = "employee-onboarding"
	PurchaseOrderKey      = "purchase-order-approval"
	DocumentApprovalKey   = "document-approval"
)

// EmployeeOnboardingRequest builds the onboarding request for emp.
func EmployeeOnboardingRequest(emp EmployeeData, bpmnXML string, now time.Time) variables.WorkflowRequest {
	req := variables.NewBuilder().
		AddVariable("processType", "employee-onboarding").
		AddVariable("priority", 90).
		AddVariable("urgent", true).
		AddString("employeeId", emp.EmployeeID).
		AddString("department", emp.JobDetails.Department).
		AddNumber("salary", emp.JobDetails.Salary).
		AddDate("startDate", emp.JobDetails.StartDate).
		AddBoolean("backgroundCheckRequired", true).
		AddList("requiredSystems", []any{"email", "hr", "payroll"}).
		AddComplexData("employeeData", emp).
		AddComplexData("onboardingChecklist", map[string]any{
			"documentsCollected":   false,
			"workspaceSetup":       false,
			"systemAccessGranted":  false,
			"orientationScheduled": false,
			"managerMeeting":       false,
		}).
		Build()

	req.BpmnXML = bpmnXML
	req.ProcessName = "Employee Onboarding Process"
	req.ProcessKey = EmployeeOnboardingKey
	req.BusinessKey = fmt.Sprintf("EMP-%s-%s", emp.EmployeeID, now.Format("20060102"))
	return req
}

// PurchaseOrderRequest builds the approval request for po.
func PurchaseOrderRequest(po PurchaseOrder, bpmnXML string) variables.WorkflowRequest {
	rush, _ := po.CustomFields["urgent"].(bool)

	codes := make([]any, 0, len(po.Items))
	for _, it := range po.Items {
		codes = append(codes, it.ItemCode)
	}

	req := variables.NewBuilder().
		AddVariable("processType", "purchase-order").
		AddString("poNumber", po.PONumber).
		AddString("vendorName", po.Vendor.Name).
		AddNumber("totalAmount", po.Totals.Total).
		AddString("currency", po.Totals.CurrencyOrDefault()).
		AddBoolean("rushOrder", rush).
		AddList("itemCodes", codes).
		AddObject("approvalThresholds", map[string]any{
			"manager":  10000.0,
			"director": 50000.0,
			"cfo":      100000.0,
			"ceo":      500000.0,
		}).
		AddComplexData("purchaseOrder", po).
		AddComplexData("approvalMatrix", ApprovalMatrix(po.Totals.Total)).
		Build()

	req.BpmnXML = bpmnXML
	req.ProcessName = "Purchase Order Approval"
	req.ProcessKey = PurchaseOrderKey
	req.BusinessKey = po.PONumber
	return req
}

// DocumentApprovalRequest builds the approval request for a document.
// metadata may carry "confidential" (bool) and "reviewers" ([]string or []any).
func DocumentApprovalRequest(documentID, documentType string, metadata map[string]any, bpmnXML string, now time.Time) variables.WorkflowRequest {
	confidential, _ := metadata["confidential"].(bool)

	var reviewers []any
	switch r := metadata["reviewers"].(type) {
	case []string:
		for _, s := range r {
			reviewers = append(reviewers, s)
		}
	case []any:
		reviewers = r
	}
	if reviewers == nil {
		reviewers = []any{}
	}

	req := variables.NewBuilder().
		AddVariable("processType", "document-approval").
		AddString("documentId", documentID).
		AddString("documentType", documentType).
		AddDate("submissionDate", now).
		AddNumber("documentVersion", 1.0).
		AddBoolean("confidential", confidential).
		AddList("reviewers", reviewers).
		AddComplexData("documentMetadata", metadata).
		AddComplexData("approvalSettings", map[string]any{
			"maxApprovalDays":     5,
			"escalationEnabled":   true,
			"notifyOnCompletion":  true,
			"requireAllApprovers": documentType == "contract",
		}).
		Build()

	req.BpmnXML = bpmnXML
	req.ProcessName = "Document Approval Process"
	req.ProcessKey = DocumentApprovalKey
	req.BusinessKey = fmt.Sprintf("DOC-%s-%s", documentID, now.Format("20060102"))
	return req
}

// ApprovalMatrix returns the approvers and level required for amount.
func ApprovalMatrix(amount float64) map[string]any {
	matrix := map[string]any{}
	switch {
	case amount < 1000:
		matrix["approvers"] = []string{"supervisor"}
		matrix["approvalLevel"] = "low"
	case amount < 10000:
		matrix["approvers"] = []string{"manager"}
		matrix["approvalLevel"] = "medium"
	case amount < 50000:
		matrix["approvers"] = []string{"manager", "director"}
		matrix["approvalLevel"] = "high"
	default:
		matrix["approvers"] = []string{"director", "cfo", "ceo"}
		matrix["approvalLevel"] = "critical"
	}

	matrix["maxDays"] = 5
	if amount > 50000 {
		matrix["maxDays"] = 3
	}
	matrix["requiresJustification"] = amount > 25000
	return matrix
}

// ExtractEmployeeData decodes the "employeeData" variable.
func ExtractEmployeeData(vars domain.Variables) (*EmployeeData, error) {
	var emp EmployeeData
	if err := variables.Decode(vars, "employeeData", &emp); err != nil {
		return nil, err
	}
	return &emp, nil
}

// ExtractPurchaseOrder decodes the "purchaseOrder" variable.
func ExtractPurchaseOrder(vars domain.Variables) (*PurchaseOrder, error) {
	var po PurchaseOrder
	if err := variables.Decode(vars, "purchaseOrder", &po); err != nil {
		return nil, err
	}
	if po.Totals.Currency == "" {
		po.Totals.Currency = DefaultCurrency
	}
	return &po, nil
}
