package identity

import (
	"fmt"
	"strings"
)

// Department is a closed set of access scopes. Adding one is a compile-time
// change: every switch over Department must be extended.
type Department string

const (
	DeptFinance      Department = "finance"
	DeptAdmissions   Department = "admissions"
	DeptStores       Department = "stores"
	DeptExaminations Department = "examinations"
)

// DepartmentCapacity is the maximum number of profiles (approved or not)
// that may ever hold the same department.
const DepartmentCapacity = 2

// Departments lists every valid department.
func Departments() []Department {
	return []Department{DeptFinance, DeptAdmissions, DeptStores, DeptExaminations}
}

// ParseDepartment validates a raw department value.
func ParseDepartment(raw string) (Department, error) {
	switch Department(strings.ToLower(strings.TrimSpace(raw))) {
	case DeptFinance:
		return DeptFinance, nil
	case DeptAdmissions:
		return DeptAdmissions, nil
	case DeptStores:
		return DeptStores, nil
	case DeptExaminations:
		return DeptExaminations, nil
	default:
		return "", fmt.Errorf("%w: unknown department %q", ErrInvalidInput, raw)
	}
}

func (d Department) String() string { return string(d) }
