package dynamo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

// ifNotExists marks a SET value that must only be written when the attribute is absent.
type ifNotExists struct{ value interface{} }

// updateExpr is a rendered update expression with its placeholder maps.
type updateExpr struct {
	Expr   string
	Names  map[string]string
	Values map[string]types.AttributeValue
}

// buildUpdateExpr converts a map of field->value into a DynamoDB SET clause,
// followed by a REMOVE clause for the given attributes. Fields are sorted so the
// expression is deterministic.
func buildUpdateExpr(set map[string]interface{}, remove ...string) (*updateExpr, error) {
	if len(set) == 0 && len(remove) == 0 {
		return nil, errors.New("no fields to update")
	}
	ue := &updateExpr{
		Names:  make(map[string]string),
		Values: make(map[string]types.AttributeValue),
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	i := 0
	var sets []string
	for _, k := range keys {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":v%d", i)
		ue.Names[nameKey] = k

		v := set[k]
		rendered := fmt.Sprintf("%s = %s", nameKey, valueKey)
		if ine, ok := v.(ifNotExists); ok {
			v = ine.value
			rendered = fmt.Sprintf("%s = if_not_exists(%s, %s)", nameKey, nameKey, valueKey)
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal field %s: %w", k, err)
		}
		ue.Values[valueKey] = av
		sets = append(sets, rendered)
		i++
	}

	removed := append([]string(nil), remove...)
	sort.Strings(removed)
	var removes []string
	for _, k := range removed {
		nameKey := fmt.Sprintf("#f%d", i)
		ue.Names[nameKey] = k
		removes = append(removes, nameKey)
		i++
	}

	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(removes, ", "))
	}
	ue.Expr = strings.Join(clauses, " ")
	return ue, nil
}

// isConditionFailed reports whether err is a failed ConditionExpression and
// returns the item DynamoDB attached to it, if any.
func isConditionFailed(err error) (map[string]types.AttributeValue, bool) {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ccf.Item, true
	}
	return nil, false
}
