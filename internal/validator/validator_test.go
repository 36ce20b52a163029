package validator

import (
	"testing"

	govalidator "github.com/go-playground/validator/v10"
	"github.com/lpkmns/nihongo-exam/internal/model"
)

func TestStrongPassword(t *testing.T) {
	tests := []struct {
		pw   string
		want bool
	}{
		{"Passw0rd", true},
		{"Sensei2025", true},
		{"short1A", false},
		{"alllowercase1", false},
		{"ALLUPPERCASE1", false},
		{"NoDigitsHere", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := StrongPassword(tt.pw); got != tt.want {
			t.Errorf("StrongPassword(%q) = %v, want %v", tt.pw, got, tt.want)
		}
	}
}

func TestDomainTags(t *testing.T) {
	v := govalidator.New()
	v.SetTagName("binding")
	Register(v)

	ok := model.GenerateTokensRequest{
		ExamType:     model.ExamTypeKanji,
		ExamCategory: "kanji-basic",
		Difficulty:   model.DifficultyBeginner,
		Count:        5,
	}
	if err := v.Struct(ok); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	bad := ok
	bad.ExamType = "romaji"
	bad.Difficulty = "expert"
	err := v.Struct(bad)
	if err == nil {
		t.Fatal("invalid enums accepted")
	}
	fields := TranslateErrors(err)
	if _, ok := fields["exam_type"]; !ok {
		t.Errorf("missing exam_type error in %v", fields)
	}
	if _, ok := fields["difficulty"]; !ok {
		t.Errorf("missing difficulty error in %v", fields)
	}

	pw := model.ChangePasswordRequest{CurrentPassword: "x", NewPassword: "weak"}
	if err := v.Struct(pw); err == nil {
		t.Error("weak password accepted")
	}
}
