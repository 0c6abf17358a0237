/*
Package denoise 提供逐帧的平稳噪声抑制。

SpectralGate 对单帧 PCM 做短时傅里叶变换，按频点统计 dB 幅度的均值与
标准差作为噪声门限，低于门限的频点按 PropDecrease 衰减，再重叠相加还原。
变换窗口取 min(MaxWindow, 帧采样数)，不会超过帧长。

降噪是尽力而为的：Safe 包装器在任何失败（错误或 panic）时返回原始帧
并记录警告，不中断后续处理。
*/
package denoise
