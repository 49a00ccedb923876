package integrity

import (
	stderrors "errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"vocatio/internal/errors"
	"vocatio/internal/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateCandidate returns an EMPTY_INPUT error when the record lacks the
// fields matching and verification need.
func ValidateCandidate(candidate *types.CandidateRecord) error {
	if candidate == nil {
		return errors.NewValidationError(errors.ErrCodeEmptyInput, "candidate record is missing", nil)
	}

	var missing []string
	if len(candidate.Experiences) == 0 && len(nonEmpty(candidate.Skills)) == 0 {
		missing = append(missing, "experiences|skills")
	}
	missing = append(missing, structFailures(candidate)...)

	return emptyInput("candidate record is incomplete", missing)
}

// ValidateJob returns an EMPTY_INPUT error when the job has nothing to match against.
func ValidateJob(job *types.JobRecord) error {
	if job == nil {
		return errors.NewValidationError(errors.ErrCodeEmptyInput, "job record is missing", nil)
	}

	var missing []string
	if len(nonEmpty(job.Skills)) == 0 && len(nonEmpty(job.Requirements)) == 0 {
		missing = append(missing, "skills|requirements")
	}
	missing = append(missing, structFailures(job)...)

	return emptyInput("job record is incomplete", missing)
}

func structFailures(v any) []string {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !stderrors.As(err, &validationErrs) {
		return []string{err.Error()}
	}

	fields := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		// drop the root type name: CandidateRecord.Experiences[0].Company
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, lowerFirstSegments(ns))
	}
	return fields
}

func emptyInput(message string, missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return errors.NewValidationError(errors.ErrCodeEmptyInput, message, nil).
		WithContext("missing_fields", missing)
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// lowerFirstSegments turns Experiences[0].StartDate into experiences[0].startDate.
func lowerFirstSegments(ns string) string {
	parts := strings.Split(ns, ".")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}
