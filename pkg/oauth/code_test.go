package oauth

import (
	"errors"
	"testing"
)

func TestExtractAuthorizationCode(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr error
	}{
		{
			name: "code present",
			url:  "https://www.amazon.com/ap/maplanding?openid.oa2.authorization_code=XYZ&other=1",
			want: "XYZ",
		},
		{
			name: "surrounding whitespace",
			url:  "  https://www.amazon.com/ap/maplanding?openid.oa2.authorization_code=XYZ\n",
			want: "XYZ",
		},
		{
			name: "escaped value",
			url:  "https://www.amazon.com/ap/maplanding?openid.oa2.authorization_code=A%2BB",
			want: "A+B",
		},
		{
			name:    "code missing",
			url:     "https://www.amazon.com/ap/maplanding?openid.mode=id_res&other=1",
			wantErr: ErrAuthorizationCodeMissing,
		},
		{
			name:    "empty code",
			url:     "https://www.amazon.com/ap/maplanding?openid.oa2.authorization_code=",
			wantErr: ErrAuthorizationCodeMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractAuthorizationCode(tt.url)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("code = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractAuthorizationCode_InvalidURL(t *testing.T) {
	if _, err := ExtractAuthorizationCode("://bad url"); err == nil {
		t.Fatal("expected an error for an unparsable URL")
	}
}
