// Package sheet reads order workbooks and writes allocation workbooks.
package sheet
