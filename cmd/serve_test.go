package cmd

import "testing"

func TestValidateAddr(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{name: "valid ip and port", addr: "127.0.0.1:8000", wantErr: false},
		{name: "localhost", addr: "localhost:8000", wantErr: false},
		{name: "all interfaces", addr: ":8000", wantErr: false},
		{name: "missing port", addr: "127.0.0.1", wantErr: true},
		{name: "port zero", addr: ":0", wantErr: true},
		{name: "port too large", addr: ":70000", wantErr: true},
		{name: "non numeric port", addr: ":http", wantErr: true},
		{name: "bad host", addr: "not a host:8000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddr(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateAddr(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}
