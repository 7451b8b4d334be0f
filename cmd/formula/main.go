// Command formula evaluates formulas given as arguments or on standard
// input, one per line. With -d, it differentiates instead of evaluating.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ashkell/formula"
)

func main() {
	log.SetFlags(0)
	var (
		with [][2]string
		dvar string
		echo bool
	)
	addwith := func(s string) error {
		d := strings.SplitN(s, "=", 2)
		if len(d) != 2 {
			return fmt.Errorf(`variable definitions must be "name=value", not %q`, s)
		}
		with = append(with, [2]string{strings.TrimSpace(d[0]), strings.TrimSpace(d[1])})
		return nil
	}
	flag.Func("given", "name=value variable definition (any number of times)", addwith)
	flag.StringVar(&dvar, "d", "", "differentiate with respect to this variable instead of evaluating")
	flag.BoolVar(&echo, "echo", false, "print parse trees")
	flag.Parse()

	reg := formula.NewRegistry()
	ctx := formula.NewContext()
	for _, d := range with {
		nm, vl := d[0], d[1]
		r, err := formula.EvalString(vl, reg, ctx)
		if err != nil {
			log.Fatalf("setting %s: %v", nm, err)
		}
		ctx.Set(nm, r)
	}

	run := func(src string) {
		e, err := formula.Parse(src, reg)
		if err != nil {
			fmt.Println(err)
			return
		}
		if echo {
			fmt.Printf("%v : ", e)
		}
		if dvar != "" {
			_, s, err := e.Diff(dvar)
			if err != nil {
				fmt.Println(err)
				return
			}
			fmt.Println(s)
			return
		}
		r, err := e.Eval(ctx)
		if err != nil {
			fmt.Println(err)
			return
		}
		fmt.Println(r)
	}

	if flag.NArg() > 0 {
		for _, arg := range flag.Args() {
			run(arg)
		}
		return
	}
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		run(line)
	}
	if err := sc.Err(); err != nil {
		log.Fatal(err)
	}
}
