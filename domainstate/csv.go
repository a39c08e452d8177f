package domainstate

import "strings"

func joinComma(vs []string) string {
	return strings.Join(vs, ",")
}

func splitComma(v string) []string {
	return strings.Split(v, ",")
}
