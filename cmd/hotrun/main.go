// Command hotrun compiles and runs small programs against a live console.
package main

func main() {
	Execute()
}
