// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

/*
TestConvertToPgx5DSN rewrites postgres URLs for the golang-migrate pgx5 driver.
*/
func TestConvertToPgx5DSN(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"postgres://u:p@db:5432/keygate", "pgx5://u:p@db:5432/keygate"},
		{"postgresql://u:p@db:5432/keygate?sslmode=disable", "pgx5://u:p@db:5432/keygate?sslmode=disable"},
		{"pgx5://u:p@db:5432/keygate", "pgx5://u:p@db:5432/keygate"},
		{"host=db user=u dbname=keygate", "host=db user=u dbname=keygate"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, convertToPgx5DSN(tt.input))
		})
	}
}
