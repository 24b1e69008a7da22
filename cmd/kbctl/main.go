// Command kbctl inspects a compliance knowledge base corpus from the shell:
// it validates resource records and runs searches without a server.
package main

func main() {
	Execute()
}
