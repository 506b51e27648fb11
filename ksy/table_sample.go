// Command ksy writes sample.db, a table file for inspecting the on-disk
// format with sqlet.ksy. It uses 1 KiB pages so the sample holds internal
// pages several levels deep.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dacapoday/sqlet/row"
	"github.com/dacapoday/sqlet/table"
)

func main() {
	os.Remove("sample.db")
	db, err := table.Open("sample.db", table.WithPageSize(1024))
	if err != nil {
		panic(err)
	}
	defer db.Close()

	err = db.Insert("1", "aj", "amariuslesure@hotmail.com")
	if err != nil {
		panic(err)
	}

	for i := range 1000 {
		id := fmt.Sprint(1000 + i)
		err = db.Insert(id, "user"+id, fmt.Sprintf("user%s@example.com", id))
		if err != nil {
			panic(err)
		}
	}

	// full-width fields
	err = db.InsertRow(row.Row{
		ID:       4294967295,
		Username: strings.Repeat("u", row.UsernameSize),
		Email:    strings.Repeat("e", row.EmailSize),
	})
	if err != nil {
		panic(err)
	}

	fmt.Printf("sample.db: %d rows, %d pages, root %d\n", db.Count(), db.PageCount(), db.Root())
}
