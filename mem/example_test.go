package mem_test

import (
	"fmt"

	"github.com/dacapoday/pst/mem"
)

func Example() {
	var f mem.File

	f.Load([]byte("hello"))
	f.WriteAt([]byte("world"), 5)

	buf := make([]byte, 10)
	n, _ := f.ReadAt(buf, 0)
	fmt.Printf("%s\n", buf[:n])
	fmt.Printf("Size: %d\n", f.Size())

	// Output:
	// helloworld
	// Size: 10
}
