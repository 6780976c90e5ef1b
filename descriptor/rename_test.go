package descriptor_test

import (
	"testing"

	"github.com/reoring/structout/descriptor"
)

func TestRenameRule_Apply(t *testing.T) {
	cases := []struct {
		rule descriptor.RenameRule
		in   string
		want string
	}{
		{descriptor.RenameCamel, "user_id", "userId"},
		{descriptor.RenameSnake, "UserId", "user_id"},
		{descriptor.RenameKebab, "UserId", "user-id"},
		{descriptor.RenamePascal, "user_id", "UserId"},
		{descriptor.RenameScreamingSnake, "userId", "USER_ID"},
		{descriptor.RenameScreamingKebab, "user_id", "USER-ID"},
		{descriptor.RenameLower, "UserId", "userid"},
		{descriptor.RenameUpper, "user_id", "USER_ID"},
		{descriptor.RenameSnake, "HTTPServer", "http_server"},
		{descriptor.RenameCamel, "HTTPServer", "httpServer"},
		{descriptor.RenameSnake, "JSONData", "json_data"},
		{descriptor.RenamePascal, "HTTPServer", "HttpServer"},
		{descriptor.RenameKebab, "HTTPServer", "http-server"},
		{descriptor.RenameSnake, "version2Beta", "version_2_beta"},
		{descriptor.RenameCamel, "version_2_beta", "version2Beta"},
		{descriptor.RenameScreamingSnake, "user id", "USER_ID"},
		{descriptor.RenameNone, "user_id", "user_id"},
	}
	for _, tc := range cases {
		if got := tc.rule.Apply(tc.in); got != tc.want {
			t.Fatalf("%s(%q) mismatch\n got=%q\nwant=%q", tc.rule, tc.in, got, tc.want)
		}
	}
}

func TestParseRenameRule(t *testing.T) {
	for _, s := range []string{"", "identity", "camelCase", "SCREAMING-KEBAB-CASE"} {
		if _, err := descriptor.ParseRenameRule(s); err != nil {
			t.Fatalf("ParseRenameRule(%q): %v", s, err)
		}
	}
	if _, err := descriptor.ParseRenameRule("Title Case"); err == nil {
		t.Fatalf("expected error for unknown rule")
	}
}
