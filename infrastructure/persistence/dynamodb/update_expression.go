package dynamodb

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"

	"ontology/domain/core/entities"
)

const versionAttribute = "version"

// patchName resolves a patch path to an attribute path. Map keys are taken
// verbatim, so property names containing dots stay a single segment.
func patchName(path string) expression.NameBuilder {
	field, key := entities.SplitPath(path)
	name := expression.Name(field)
	if key != "" {
		name = name.AppendName(expression.NameNoDotSplit(key))
	}
	return name
}

// buildPatchUpdate turns a node patch into an update expression that also bumps
// the document version.
func buildPatchUpdate(patch entities.NodePatch) (expression.UpdateBuilder, error) {
	update := expression.Set(
		expression.Name(versionAttribute),
		expression.Name(versionAttribute).Plus(expression.Value(1)),
	)
	for _, path := range patch.Paths() {
		fp := patch[path]
		switch fp.Op {
		case entities.Set:
			update = update.Set(patchName(path), expression.Value(jsonTagged{v: storageValue(fp.Value)}))
		case entities.Delete:
			update = update.Remove(patchName(path))
		default:
			return update, fmt.Errorf("patch %q: unsupported op %d", path, fp.Op)
		}
	}
	return update, nil
}
